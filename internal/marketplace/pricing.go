package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// marketplaceFeeFactor: the seller keeps 70% of the listed price.
const (
	payoutNumerator   = 7
	payoutDenominator = 10
)

// NetPayout returns the amount the seller receives after the fixed
// marketplace fee: floor(price * 0.7).
func NetPayout(price int64) int64 {
	return price * payoutNumerator / payoutDenominator
}

// priceFields are the accepted names for the price in product-info payloads.
// The upstream API has shipped all of these at various times.
var priceFields = []string{"PriceInRobux", "priceInRobux", "price"}

// ExperimentRules configures the pricing-experiment detection predicate.
// The exact trigger set is unstable upstream, so it is data, not code.
type ExperimentRules struct {
	Flags         []string
	FeatureTokens []string
}

// QuoteResult is the per-listing outcome of a scan.
//
// Exactly one of Price or Err is meaningful. RegionalPricing is nil when the
// secondary lookup could not be completed, which is distinct from false
// (checked and absent).
type QuoteResult struct {
	Ref             string
	Price           *int64
	NetPayout       *int64
	RegionalPricing *bool
	Err             string
}

type PricingConfig struct {
	EconomyBase string
	DetailsBase string
	// SecurityCookie is the optional authenticated session credential for
	// the experiment lookup. Empty disables that lookup (soft failure).
	SecurityCookie   string
	ThrottleRetryMax int
}

type PricingClient struct {
	fetcher *Fetcher
	log     logx.Logger
	cfg     PricingConfig

	mu    sync.RWMutex
	rules ExperimentRules
}

func NewPricingClient(fetcher *Fetcher, cfg PricingConfig, rules ExperimentRules, log logx.Logger) *PricingClient {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.ThrottleRetryMax <= 0 {
		cfg.ThrottleRetryMax = 3
	}
	return &PricingClient{fetcher: fetcher, log: log, cfg: cfg, rules: rules}
}

// SetExperimentRules swaps the detection data (config hot reload).
func (c *PricingClient) SetExperimentRules(rules ExperimentRules) {
	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()
}

func (c *PricingClient) experimentRules() ExperimentRules {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rules
}

// Quote resolves one listing reference to a price, net payout and
// regional-pricing indicator. A failure here is scoped to this listing; the
// result carries it instead of an error so sibling listings proceed.
func (c *PricingClient) Quote(ctx context.Context, ref string) QuoteResult {
	res := QuoteResult{Ref: ref}

	price, errMsg := c.fetchPrice(ctx, ref)
	if errMsg != "" {
		res.Err = errMsg
		return res
	}

	payout := NetPayout(price)
	res.Price = &price
	res.NetPayout = &payout

	// The experiment lookup is best-effort: missing credential or any
	// failure degrades to an unknown indicator, never a failed quote.
	res.RegionalPricing = c.checkExperiment(ctx, ref)
	return res
}

func (c *PricingClient) fetchPrice(ctx context.Context, ref string) (int64, string) {
	url := fmt.Sprintf("%s/product-info/%s", strings.TrimRight(c.cfg.EconomyBase, "/"), ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "lookup failed"
	}

	// Single attempt: a hard upstream failure is final for this listing.
	resp, err := c.fetcher.Do(ctx, req, 0)
	if err != nil {
		c.log.Warn("product info fetch failed", logx.String("ref", ref), logx.Err(err))
		return 0, "lookup failed"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("product info returned non-200", logx.String("ref", ref), logx.Int("status", resp.StatusCode))
		return 0, fmt.Sprintf("lookup failed (status %d)", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return 0, "lookup failed"
	}

	price, ok := readPrice(payload)
	if !ok || price <= 0 {
		// Zero is not free revenue; it means the field was absent or unset.
		return 0, "price unreadable"
	}
	return price, ""
}

func readPrice(payload map[string]any) (int64, bool) {
	for _, field := range priceFields {
		v, ok := payload[field]
		if !ok {
			continue
		}
		switch x := v.(type) {
		case float64:
			return int64(x), true
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return n, true
			}
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// checkExperiment returns nil when the lookup could not be completed.
func (c *PricingClient) checkExperiment(ctx context.Context, ref string) *bool {
	cookie := strings.TrimSpace(c.cfg.SecurityCookie)
	if cookie == "" {
		return nil
	}

	url := fmt.Sprintf("%s/details/%s", strings.TrimRight(c.cfg.DetailsBase, "/"), ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Cookie", ".ROBLOSECURITY="+cookie)

	resp, err := c.fetcher.Do(ctx, req, c.cfg.ThrottleRetryMax)
	if err != nil {
		c.log.Debug("experiment lookup failed", logx.String("ref", ref), logx.Err(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Debug("experiment lookup returned non-200", logx.String("ref", ref), logx.Int("status", resp.StatusCode))
		return nil
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil
	}

	enrolled := detectExperiment(payload, c.experimentRules())
	return &enrolled
}

// detectExperiment is true if any configured boolean flag is set, or any
// configured feature token appears in the enabled-features collection.
func detectExperiment(payload map[string]any, rules ExperimentRules) bool {
	for _, flag := range rules.Flags {
		if v, ok := payload[flag].(bool); ok && v {
			return true
		}
	}

	features, _ := payload["enabledFeatures"].([]any)
	if len(features) == 0 {
		return false
	}
	want := make(map[string]struct{}, len(rules.FeatureTokens))
	for _, t := range rules.FeatureTokens {
		want[t] = struct{}{}
	}
	for _, f := range features {
		s, ok := f.(string)
		if !ok {
			continue
		}
		if _, hit := want[s]; hit {
			return true
		}
	}
	return false
}
