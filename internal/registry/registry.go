// Package registry owns the administrator-configured group records used for
// eligibility checks.
//
// A record's group id, extracted from its link, is the sole dedup and match
// key. Display names and raw link text are never compared.
package registry

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultWaitDays is applied when an upsert or a legacy record omits the
// wait period.
const DefaultWaitDays = 14

var groupLinkPattern = regexp.MustCompile(`(?i)roblox\.com/(?:groups|communities)/(\d+)`)

type GroupRecord struct {
	Name     string `json:"name"`
	Link     string `json:"link"`
	WaitDays int    `json:"waitDays"`
}

// ID extracts the group identifier from the record's link.
func (g GroupRecord) ID() (int64, bool) {
	return ExtractGroupID(g.Link)
}

// ExtractGroupID pulls the decimal group id out of a group link.
func ExtractGroupID(link string) (int64, bool) {
	m := groupLinkPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Canonical fills defaults: name derived from the id when absent, wait days
// defaulted. Returns false when the link has no extractable id.
func Canonical(rec GroupRecord) (GroupRecord, bool) {
	id, ok := ExtractGroupID(rec.Link)
	if !ok {
		return GroupRecord{}, false
	}
	rec.Link = strings.TrimSpace(rec.Link)
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		rec.Name = fmt.Sprintf("Group %d", id)
	}
	if rec.WaitDays <= 0 {
		rec.WaitDays = DefaultWaitDays
	}
	return rec, true
}

// Normalize migrates a loaded registry to canonical records.
//
// Persisted entries are a tagged union: legacy stores kept plain link
// strings, newer ones full records. Legacy links get DefaultWaitDays and a
// derived name; entries without a usable link are dropped.
func Normalize(raw []json.RawMessage) []GroupRecord {
	out := make([]GroupRecord, 0, len(raw))
	for _, item := range raw {
		var link string
		if err := json.Unmarshal(item, &link); err == nil {
			if rec, ok := Canonical(GroupRecord{Link: link}); ok {
				out = append(out, rec)
			}
			continue
		}

		var rec GroupRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			continue
		}
		if rec, ok := Canonical(rec); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Upsert adds or replaces a record keyed by its extracted group id,
// preserving positions of existing records. It never duplicates an id.
func Upsert(groups []GroupRecord, rec GroupRecord) ([]GroupRecord, error) {
	canon, ok := Canonical(rec)
	if !ok {
		return groups, fmt.Errorf("link has no extractable group id: %q", rec.Link)
	}
	id, _ := canon.ID()
	for i, g := range groups {
		if gid, ok := g.ID(); ok && gid == id {
			groups[i] = canon
			return groups, nil
		}
	}
	return append(groups, canon), nil
}
