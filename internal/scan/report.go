package scan

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/glaizaaaaaa2/scanner-bot/internal/marketplace"
)

// DefaultChunkBudget leaves headroom below the transport's hard message
// limit so a chunk always fits in one platform message.
const DefaultChunkBudget = 3500

// ReportBuilder formats per-listing quote results into length-bounded text
// chunks. Chunks split only between listing blocks, never inside one, and
// listing order is preserved.
type ReportBuilder struct {
	ChunkBudget int
}

func NewReportBuilder(chunkBudget int) *ReportBuilder {
	if chunkBudget <= 0 {
		chunkBudget = DefaultChunkBudget
	}
	return &ReportBuilder{ChunkBudget: chunkBudget}
}

func (b *ReportBuilder) Render(results []marketplace.QuoteResult) []string {
	if len(results) == 0 {
		return nil
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, renderBlock(r))
	}

	var out []string
	var cur strings.Builder
	curLen := 0
	for _, block := range blocks {
		bl := utf8.RuneCountInString(block)
		// +2 for the blank line between blocks.
		if curLen > 0 && curLen+2+bl > b.ChunkBudget {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(block)
		curLen += bl
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

func renderBlock(r marketplace.QuoteResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎟 https://www.roblox.com/game-pass/%s\n", r.Ref)

	if r.Err != "" {
		// Phrased as transient; details stay in the logs.
		fmt.Fprintf(&b, "⚠️ %s, try again in a bit", capitalize(r.Err))
		return b.String()
	}

	fmt.Fprintf(&b, "💰 Price: %d Robux, net payout: %d Robux\n", *r.Price, *r.NetPayout)

	switch {
	case r.RegionalPricing == nil:
		b.WriteString("🌍 Regional pricing: could not verify")
	case *r.RegionalPricing:
		b.WriteString("🌍 Regional pricing: ON")
	default:
		b.WriteString("🌍 Regional pricing: off")
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
