// Package bot routes incoming chat messages to the scan, eligibility and
// registry-administration handlers.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/glaizaaaaaa2/scanner-bot/internal/marketplace"
	"github.com/glaizaaaaaa2/scanner-bot/internal/scan"
	"github.com/glaizaaaaaa2/scanner-bot/internal/storage"
	kit "github.com/glaizaaaaaa2/scanner-bot/internal/transport"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

type Config struct {
	OwnerUserIDs      []int64
	ScanChatID        int64
	EligibilityChatID int64
	TriggerToken      string
}

type Bot struct {
	log logx.Logger
	cfg Config

	owners map[int64]struct{}

	adapter kit.Adapter
	queue   *scan.Queue
	gate    *scan.CooldownGate
	scans   *scan.Service
	members *marketplace.MembershipClient
	store   storage.Store

	// regMu serializes load-upsert-save sequences on the registry store.
	regMu sync.Mutex

	now func() time.Time
}

func New(
	cfg Config,
	adapter kit.Adapter,
	queue *scan.Queue,
	gate *scan.CooldownGate,
	scans *scan.Service,
	members *marketplace.MembershipClient,
	store storage.Store,
	log logx.Logger,
) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	owners := make(map[int64]struct{}, len(cfg.OwnerUserIDs))
	for _, id := range cfg.OwnerUserIDs {
		owners[id] = struct{}{}
	}
	return &Bot{
		log:     log,
		cfg:     cfg,
		owners:  owners,
		adapter: adapter,
		queue:   queue,
		gate:    gate,
		scans:   scans,
		members: members,
		store:   store,
		now:     time.Now,
	}
}

// Run pumps updates from the adapter until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	updates := make(chan kit.Message, 64)
	if err := b.adapter.Start(ctx, updates); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return b.adapter.Stop(context.Background())
		case m := <-updates:
			b.dispatch(ctx, m)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, m kit.Message) {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return
	}

	cmd, args := splitCommand(text)
	switch cmd {
	case "/addgroup":
		b.handleAddGroup(ctx, m, args)
		return
	case "/eligible":
		// Runs un-queued on the interactive path: its endpoints are
		// disjoint from the pricing path, and the fetcher-level backoff
		// is the only coordination needed.
		go b.safely("eligible", func() { b.handleEligible(ctx, m, args) })
		return
	}

	if m.ChatID == b.cfg.ScanChatID && strings.EqualFold(text, b.cfg.TriggerToken) {
		b.handleScanTrigger(ctx, m)
	}
}

// safely keeps a handler panic from killing the process.
func (b *Bot) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in handler",
				logx.String("handler", name),
				logx.Any("panic", r),
				logx.Stack(logx.StackTrace(3, 16)),
			)
		}
	}()
	fn()
}

func (b *Bot) isOwner(userID int64) bool {
	_, ok := b.owners[userID]
	return ok
}

// splitCommand separates the command token (bot-mention suffix stripped)
// from the remaining argument text.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd = text
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		cmd = text[:i]
		args = strings.TrimSpace(text[i+1:])
	}
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), args
}

func (b *Bot) reply(ctx context.Context, m kit.Message, text string) {
	_, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, &kit.SendOptions{
		DisablePreview:   true,
		ReplyToMessageID: m.ID,
	})
	if err != nil {
		b.log.Warn("reply send failed", logx.Int64("chat", m.ChatID), logx.Err(err))
	}
}
