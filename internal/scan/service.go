package scan

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/glaizaaaaaa2/scanner-bot/internal/marketplace"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// DefaultQuoteDelay is the fixed pause between successive listing quotes
// inside one scan. Pacing preempts upstream throttling instead of only
// reacting to it.
const DefaultQuoteDelay = 350 * time.Millisecond

// Quoter resolves a single listing reference.
type Quoter interface {
	Quote(ctx context.Context, ref string) marketplace.QuoteResult
}

// Sender emits one report chunk to the requester.
type Sender func(ctx context.Context, text string) error

// Service drives one scan: resolve references, quote each sequentially under
// pacing, render and emit the chunked report.
type Service struct {
	log     logx.Logger
	quoter  Quoter
	limiter *rate.Limiter
	report  *ReportBuilder
}

func NewService(quoter Quoter, quoteDelay time.Duration, chunkBudget int, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if quoteDelay <= 0 {
		quoteDelay = DefaultQuoteDelay
	}
	return &Service{
		log:     log,
		quoter:  quoter,
		limiter: rate.NewLimiter(rate.Every(quoteDelay), 1),
		report:  NewReportBuilder(chunkBudget),
	}
}

// Run executes a scan over sourceText. It only returns an error for
// transport failures; per-listing upstream failures land in the report.
func (s *Service) Run(ctx context.Context, sourceText string, send Sender) error {
	refs := ExtractReferences(sourceText)
	if len(refs) == 0 {
		// Normal outcome, not a failure.
		return send(ctx, "No game-pass links found in that message.")
	}

	s.log.Info("scan started", logx.Int("listings", len(refs)))

	results := make([]marketplace.QuoteResult, 0, len(refs))
	for _, ref := range refs {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		results = append(results, s.quoter.Quote(ctx, ref))
	}

	for _, chunk := range s.report.Render(results) {
		if err := send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
