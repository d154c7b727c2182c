package scan

import "regexp"

// listingLinkPattern matches marketplace game-pass links and captures the
// numeric listing id.
var listingLinkPattern = regexp.MustCompile(`(?i)roblox\.com/game-pass/(\d+)`)

// ExtractReferences returns the unique listing ids referenced in text, in
// first-occurrence order. No matches is a normal outcome: it returns an
// empty slice, never an error.
func ExtractReferences(text string) []string {
	matches := listingLinkPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		ref := m[1]
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
