package config

import "strings"

type Config struct {
	Telegram    Telegram    `json:"telegram"`
	Logging     Logging     `json:"logging"`
	Marketplace Marketplace `json:"marketplace"`
	Scan        Scan        `json:"scan"`
	Storage     Storage     `json:"storage"`
	Maintenance Maintenance `json:"maintenance,omitempty"`
}

type Telegram struct {
	Token string `json:"token"`
	// OwnerUserIDs may run the administrative registry commands.
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// ScanChatID is the only chat where the scan reply-token is honored.
	ScanChatID int64 `json:"scan_chat_id"`
	// EligibilityChatID is the only chat where /eligible is honored.
	EligibilityChatID int64 `json:"eligibility_chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type Logging struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// Marketplace configures the upstream API endpoints and credentials.
//
// SecurityCookie is the optional authenticated session cookie required by the
// pricing-experiment endpoint. Leaving it empty disables that lookup; quotes
// still succeed with the regional-pricing indicator reported as unverified.
type Marketplace struct {
	EconomyBase    string `json:"economy_base,omitempty"`
	DetailsBase    string `json:"details_base,omitempty"`
	UsersBase      string `json:"users_base,omitempty"`
	GroupsBase     string `json:"groups_base,omitempty"`
	SecurityCookie string `json:"security_cookie,omitempty"`

	// RequestTimeout is a Go duration string applied per HTTP attempt.
	RequestTimeout string `json:"request_timeout,omitempty"`
	// ThrottleRetryMax is the number of extra attempts after a throttled
	// response (default 3).
	ThrottleRetryMax int `json:"throttle_retry_max,omitempty"`

	Experiment Experiment `json:"experiment,omitempty"`
}

// Experiment holds the pricing-experiment detection data.
//
// The upstream schema for this is unstable, so the trigger flags and feature
// tokens are config data (hot-reloadable), not code. Empty lists fall back to
// the defaults below.
type Experiment struct {
	Flags         []string `json:"flags,omitempty"`
	FeatureTokens []string `json:"feature_tokens,omitempty"`
}

type Scan struct {
	// TriggerToken is the literal reply message that starts a scan.
	TriggerToken string `json:"trigger_token,omitempty"`
	// Cooldown is the per-requester admission window (Go duration string).
	Cooldown string `json:"cooldown,omitempty"`
	// QuoteDelay is the fixed pause between successive listing quotes.
	QuoteDelay string `json:"quote_delay,omitempty"`
	// ChunkBudget caps report chunk length in runes.
	ChunkBudget int `json:"chunk_budget,omitempty"`
	// QueueSize bounds the pending-scan backlog.
	QueueSize int `json:"queue_size,omitempty"`
}

// Storage selects the registry store backend.
//
// Driver values: "file" (JSON document) or "sqlite".
type Storage struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`

	Seed SeedGroup `json:"seed,omitempty"`
}

// SeedGroup is written once when the store is empty on first access.
type SeedGroup struct {
	Name     string `json:"name,omitempty"`
	Link     string `json:"link,omitempty"`
	WaitDays int    `json:"wait_days,omitempty"`
}

type Maintenance struct {
	// PruneSchedule is a robfig/cron spec (default "@every 10m").
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// Defaults applied when fields are omitted.
const (
	DefaultEconomyBase = "https://economy.roblox.com/v1"
	DefaultDetailsBase = "https://apis.roblox.com/game-passes/v1"
	DefaultUsersBase   = "https://users.roblox.com/v1"
	DefaultGroupsBase  = "https://groups.roblox.com/v1"

	DefaultTriggerToken  = ".scan"
	DefaultPruneSchedule = "@every 10m"
)

// DefaultExperiment matches the upstream schema last confirmed against the
// live API.
var DefaultExperiment = Experiment{
	Flags:         []string{"isRegionalPricingEnabled", "regionalPricingEnabled", "isDynamicPricingEnabled"},
	FeatureTokens: []string{"RegionalPricing", "DynamicLocalPrice"},
}

func (m Marketplace) EconomyBaseOrDefault() string { return orDefault(m.EconomyBase, DefaultEconomyBase) }
func (m Marketplace) DetailsBaseOrDefault() string { return orDefault(m.DetailsBase, DefaultDetailsBase) }
func (m Marketplace) UsersBaseOrDefault() string   { return orDefault(m.UsersBase, DefaultUsersBase) }
func (m Marketplace) GroupsBaseOrDefault() string  { return orDefault(m.GroupsBase, DefaultGroupsBase) }

func (e Experiment) WithDefaults() Experiment {
	out := e
	if len(out.Flags) == 0 {
		out.Flags = append([]string(nil), DefaultExperiment.Flags...)
	}
	if len(out.FeatureTokens) == 0 {
		out.FeatureTokens = append([]string(nil), DefaultExperiment.FeatureTokens...)
	}
	return out
}

func (s Scan) TriggerTokenOrDefault() string {
	return orDefault(s.TriggerToken, DefaultTriggerToken)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
