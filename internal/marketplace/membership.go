package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

type MembershipConfig struct {
	UsersBase  string
	GroupsBase string
}

// MembershipClient resolves usernames and group memberships.
//
// Both calls are single-attempt: they serve one interactive requester, so a
// direct "lookup failed" report beats waiting out a retry budget.
type MembershipClient struct {
	fetcher *Fetcher
	log     logx.Logger
	cfg     MembershipConfig
}

func NewMembershipClient(fetcher *Fetcher, cfg MembershipConfig, log logx.Logger) *MembershipClient {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &MembershipClient{fetcher: fetcher, log: log, cfg: cfg}
}

// ResolveUser maps a username to its external user id.
// An unknown username is (0, false, nil): a normal outcome, not an error.
func (c *MembershipClient) ResolveUser(ctx context.Context, username string) (int64, bool, error) {
	body, err := json.Marshal(struct {
		Usernames          []string `json:"usernames"`
		ExcludeBannedUsers bool     `json:"excludeBannedUsers"`
	}{Usernames: []string{username}, ExcludeBannedUsers: true})
	if err != nil {
		return 0, false, err
	}

	url := strings.TrimRight(c.cfg.UsersBase, "/") + "/usernames/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.fetcher.Do(ctx, req, 0)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("username lookup: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return 0, false, err
	}
	if len(payload.Data) == 0 {
		return 0, false, nil
	}
	return payload.Data[0].ID, true, nil
}

// ListUserGroups returns the set of group ids the user belongs to.
func (c *MembershipClient) ListUserGroups(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	url := fmt.Sprintf("%s/users/%d/groups/roles", strings.TrimRight(c.cfg.GroupsBase, "/"), userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.fetcher.Do(ctx, req, 0)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("group roles lookup: status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Group struct {
				ID int64 `json:"id"`
			} `json:"group"`
		} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, err
	}

	out := make(map[int64]struct{}, len(payload.Data))
	for _, d := range payload.Data {
		if d.Group.ID != 0 {
			out[d.Group.ID] = struct{}{}
		}
	}
	return out, nil
}
