package marketplace

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

const (
	// retryAfterFloor is the minimum wait honored for a server retry hint.
	retryAfterFloor = 1000 * time.Millisecond
	// throttleFallbackStep escalates when the server gives no usable hint.
	throttleFallbackStep = 1500 * time.Millisecond
)

// Fetcher performs outbound HTTP calls with bounded retry on server-signaled
// throttling (HTTP 429). Every external call shares this one policy so
// backpressure handling lives in a single place.
//
// Non-throttling responses, including error statuses, are returned on the
// first attempt. On exhausted retries the last throttled response is returned
// rather than an error; throttling detection stays with the caller.
type Fetcher struct {
	client *http.Client
	log    logx.Logger
}

func NewFetcher(client *http.Client, log logx.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{client: client, log: log}
}

// Do sends req, retrying up to maxRetries additional times while the server
// answers 429. The wait between attempts is taken from the Retry-After hint
// (floored at 1s) or escalates from 1.5s when the hint is absent.
//
// maxRetries of 0 makes this a plain single-attempt call.
func (f *Fetcher) Do(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var resp *http.Response
	for attempt := 0; ; attempt++ {
		r := req
		if attempt > 0 {
			r = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return resp, err
				}
				r.Body = body
			}
		}

		var err error
		resp, err = f.client.Do(r)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= maxRetries {
			return resp, nil
		}

		wait := throttleWait(resp, attempt)
		f.log.Debug("throttled by upstream; backing off",
			logx.String("url", req.URL.String()),
			logx.Int("attempt", attempt+1),
			logx.Duration("wait", wait),
		)

		// Discard the throttled response before retrying.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()

		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// throttleWait computes the backoff before the next attempt.
func throttleWait(resp *http.Response, attempt int) time.Duration {
	if raw := strings.TrimSpace(resp.Header.Get("Retry-After")); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			d := time.Duration(secs * float64(time.Second))
			if d < retryAfterFloor {
				d = retryAfterFloor
			}
			return d
		}
	}
	return throttleFallbackStep * time.Duration(attempt+1)
}

// sleepCtx suspends the calling task (not the process) for d.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Throttled reports whether resp is a still-throttled response (retry budget
// exhausted upstream of the caller).
func Throttled(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusTooManyRequests
}
