package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	kit "github.com/glaizaaaaaa2/scanner-bot/internal/transport"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// handleAddGroup upserts a registry record: /addgroup <name> | <link> | [waitDays]
func (b *Bot) handleAddGroup(ctx context.Context, m kit.Message, args string) {
	if !b.isOwner(m.FromID) {
		b.log.Debug("addgroup denied", logx.Int64("from", m.FromID))
		return
	}
	if b.store == nil {
		b.reply(ctx, m, "Registry storage is not configured.")
		return
	}

	rec, err := parseAddGroupArgs(args)
	if err != nil {
		b.reply(ctx, m, "Usage: /addgroup <name> | <link> | [waitDays]")
		return
	}

	b.regMu.Lock()
	defer b.regMu.Unlock()

	groups, err := b.store.Load(ctx)
	if err != nil {
		b.log.Error("registry load failed", logx.Err(err))
		b.reply(ctx, m, "Could not read the registry, please try again.")
		return
	}

	groups, err = registry.Upsert(groups, rec)
	if err != nil {
		b.reply(ctx, m, "That link has no group id I can use.")
		return
	}
	if err := b.store.Save(ctx, groups); err != nil {
		b.log.Error("registry save failed", logx.Err(err))
		b.reply(ctx, m, "Could not save the registry, please try again.")
		return
	}

	saved, _ := registry.Canonical(rec)
	id, _ := saved.ID()
	b.reply(ctx, m, fmt.Sprintf("Saved %s (group %d, wait %d days). Registry now has %d group(s).",
		saved.Name, id, saved.WaitDays, len(groups)))
}

func parseAddGroupArgs(args string) (registry.GroupRecord, error) {
	parts := strings.Split(args, "|")
	if len(parts) < 2 {
		return registry.GroupRecord{}, fmt.Errorf("need name and link")
	}
	rec := registry.GroupRecord{
		Name: strings.TrimSpace(parts[0]),
		Link: strings.TrimSpace(parts[1]),
	}
	if rec.Link == "" {
		return registry.GroupRecord{}, fmt.Errorf("empty link")
	}
	if len(parts) >= 3 {
		raw := strings.TrimSpace(parts[2])
		if raw != "" {
			days, err := strconv.Atoi(raw)
			if err != nil || days <= 0 {
				return registry.GroupRecord{}, fmt.Errorf("bad wait days %q", raw)
			}
			rec.WaitDays = days
		}
	}
	return rec, nil
}

// handleEligible reports, for every registered group, whether the named user
// is a member.
func (b *Bot) handleEligible(ctx context.Context, m kit.Message, args string) {
	if b.cfg.EligibilityChatID != 0 && m.ChatID != b.cfg.EligibilityChatID {
		return
	}
	username := strings.TrimSpace(args)
	if username == "" {
		b.reply(ctx, m, "Usage: /eligible <username>")
		return
	}
	if b.store == nil {
		b.reply(ctx, m, "Registry storage is not configured.")
		return
	}

	userID, found, err := b.members.ResolveUser(ctx, username)
	if err != nil {
		b.log.Warn("username lookup failed", logx.String("username", username), logx.Err(err))
		b.reply(ctx, m, "Lookup failed, please try again in a bit.")
		return
	}
	if !found {
		// A normal outcome, not an error.
		b.reply(ctx, m, fmt.Sprintf("No user named %q found.", username))
		return
	}

	memberOf, err := b.members.ListUserGroups(ctx, userID)
	if err != nil {
		b.log.Warn("group roles lookup failed", logx.Int64("user", userID), logx.Err(err))
		b.reply(ctx, m, "Lookup failed, please try again in a bit.")
		return
	}

	groups, err := b.store.Load(ctx)
	if err != nil {
		b.log.Error("registry load failed", logx.Err(err))
		b.reply(ctx, m, "Could not read the registry, please try again.")
		return
	}

	b.reply(ctx, m, registry.RenderEligibility(username, userID, groups, memberOf))
}

// handleScanTrigger admits the requester through the cooldown gate and
// queues the scan over the replied-to message.
func (b *Bot) handleScanTrigger(ctx context.Context, m kit.Message) {
	if m.ReplyTo == nil || strings.TrimSpace(m.ReplyTo.Text) == "" {
		b.reply(ctx, m, "Reply to the message that contains the game-pass links.")
		return
	}

	if !b.gate.Admit(m.FromID, b.now()) {
		// Rejected inside the cooldown window: zero external calls,
		// and deliberately no reply (spam begets no feedback loop).
		b.log.Debug("scan rejected by cooldown", logx.Int64("from", m.FromID))
		return
	}

	source := m.ReplyTo.Text
	target := m // captured for the queued task's replies

	_, err := b.queue.Enqueue(fmt.Sprintf("scan-%d", m.ID), func(ctx context.Context) error {
		return b.runScanTask(ctx, target, source)
	})
	if err != nil {
		b.log.Warn("scan enqueue failed", logx.Err(err))
		b.reply(ctx, m, "The scanner is busy right now, try again in a moment.")
	}
}

// runScanTask is the queued task body. Failures are reported to the
// requester generically and never poison the queue.
func (b *Bot) runScanTask(ctx context.Context, m kit.Message, source string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
			b.log.Error("panic in scan task", logx.Any("panic", r), logx.Stack(logx.StackTrace(3, 16)))
			b.reply(ctx, m, "Something went wrong during the scan, please try again.")
		}
	}()

	err = b.scans.Run(ctx, source, func(ctx context.Context, text string) error {
		_, sendErr := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: m.ChatID}, text, &kit.SendOptions{
			DisablePreview:   true,
			ReplyToMessageID: m.ID,
		})
		return sendErr
	})
	if err != nil && ctx.Err() == nil {
		b.reply(ctx, m, "Something went wrong during the scan, please try again.")
	}
	return err
}
