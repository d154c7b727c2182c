package registry

import (
	"fmt"
	"strings"
)

// RenderEligibility builds the membership report: every registered group in
// registry order with a binary membership indicator, matched by group id.
func RenderEligibility(username string, userID int64, groups []GroupRecord, memberOf map[int64]struct{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Membership report for %s (id %d)\n", username, userID)

	if len(groups) == 0 {
		b.WriteString("No groups registered.")
		return b.String()
	}

	for _, g := range groups {
		id, ok := g.ID()
		if !ok {
			continue
		}
		if _, member := memberOf[id]; member {
			fmt.Fprintf(&b, "✅ %s (%d): Member\n", g.Name, id)
		} else {
			fmt.Fprintf(&b, "❌ %s (%d): Not in Group\n", g.Name, id)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
