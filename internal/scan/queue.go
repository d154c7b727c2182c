package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

var (
	ErrQueueFull    = errors.New("scan queue full")
	ErrQueueStopped = errors.New("scan queue stopped")
)

type queuedScan struct {
	name string
	run  func(ctx context.Context) error
	done chan struct{}
}

// Queue executes scans strictly one at a time, process-wide, in arrival
// order. This protects the shared external rate-limit budget: no two scans'
// upstream calls ever interleave.
//
// A task failure (error or panic) is logged and isolated; the worker loop
// continues with the next task.
type Queue struct {
	log logx.Logger

	mu       sync.Mutex
	queue    chan queuedScan
	stopCh   chan struct{}
	workerWG sync.WaitGroup
}

func NewQueue(queueSize int, log logx.Logger) *Queue {
	if log.IsZero() {
		log = logx.Nop()
	}
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Queue{log: log, queue: make(chan queuedScan, queueSize)}
}

func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopCh != nil {
		return
	}
	q.stopCh = make(chan struct{})
	stopCh := q.stopCh
	queue := q.queue

	q.workerWG.Add(1)
	go func() {
		defer q.workerWG.Done()
		q.worker(ctx, stopCh, queue)
	}()
	q.log.Debug("scan queue started", logx.Int("queue_cap", cap(queue)))
}

func (q *Queue) Stop(ctx context.Context) {
	q.mu.Lock()
	stopCh := q.stopCh
	q.stopCh = nil
	q.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)

	done := make(chan struct{})
	go func() {
		q.workerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Enqueue submits a scan for serialized execution. The returned channel
// closes when the scan finishes (success or failure).
//
// Non-blocking: a full queue returns ErrQueueFull rather than stalling the
// interactive path.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) (<-chan struct{}, error) {
	q.mu.Lock()
	stopped := q.stopCh == nil
	q.mu.Unlock()
	if stopped {
		return nil, ErrQueueStopped
	}
	if run == nil {
		return nil, errors.New("scan run fn is nil")
	}

	t := queuedScan{name: name, run: run, done: make(chan struct{})}
	select {
	case q.queue <- t:
		return t.done, nil
	default:
		q.log.Warn("scan queue full; dropping scan", logx.String("scan", name), logx.Int("queue_cap", cap(q.queue)))
		return nil, ErrQueueFull
	}
}

func (q *Queue) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan queuedScan) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			q.execOne(ctx, t)
		}
	}
}

func (q *Queue) execOne(ctx context.Context, t queuedScan) {
	defer close(t.done)
	start := time.Now()

	err := func() (err error) {
		// A panicking scan must not take the worker down with it.
		defer func() {
			if r := recover(); r != nil {
				err = errors.New("scan panicked")
				q.log.Error("panic in scan task",
					logx.String("scan", t.name),
					logx.Any("panic", r),
					logx.Stack(logx.StackTrace(3, 16)),
				)
			}
		}()
		return t.run(ctx)
	}()

	dur := time.Since(start)
	if err != nil {
		q.log.Warn("scan failed", logx.String("scan", t.name), logx.Err(err), logx.Duration("dur", dur))
		return
	}
	q.log.Debug("scan completed", logx.String("scan", t.name), logx.Duration("dur", dur))
}
