package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glaizaaaaaa2/scanner-bot/internal/marketplace"
	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	"github.com/glaizaaaaaa2/scanner-bot/internal/scan"
	kit "github.com/glaizaaaaaa2/scanner-bot/internal/transport"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (a *fakeAdapter) Start(ctx context.Context, out chan<- kit.Message) error { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error                          { return nil }

func (a *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	a.mu.Lock()
	a.sent = append(a.sent, text)
	a.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (a *fakeAdapter) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

// waitForMessage polls until a sent message contains want.
func (a *fakeAdapter) waitForMessage(t *testing.T, want string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, s := range a.messages() {
			if strings.Contains(s, want) {
				return s
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no message containing %q arrived; got %v", want, a.messages())
	return ""
}

type fakeStore struct {
	mu     sync.Mutex
	groups []registry.GroupRecord
}

func (s *fakeStore) Load(ctx context.Context) ([]registry.GroupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.GroupRecord(nil), s.groups...), nil
}

func (s *fakeStore) Save(ctx context.Context, groups []registry.GroupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = append([]registry.GroupRecord(nil), groups...)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakeQuoter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeQuoter) Quote(ctx context.Context, ref string) marketplace.QuoteResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	price := int64(100)
	payout := marketplace.NetPayout(price)
	return marketplace.QuoteResult{Ref: ref, Price: &price, NetPayout: &payout}
}

func (f *fakeQuoter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testBot struct {
	bot     *Bot
	adapter *fakeAdapter
	quoter  *fakeQuoter
	store   *fakeStore
}

func newTestBot(t *testing.T, cfg Config) *testBot {
	t.Helper()
	adapter := &fakeAdapter{}
	quoter := &fakeQuoter{}
	store := &fakeStore{}

	queue := scan.NewQueue(8, logx.Nop())
	queue.Start(context.Background())
	t.Cleanup(func() { queue.Stop(context.Background()) })

	gate := scan.NewCooldownGate(5 * time.Second)
	svc := scan.NewService(quoter, time.Millisecond, 0, logx.Nop())

	b := New(cfg, adapter, queue, gate, svc, nil, store, logx.Nop())
	return &testBot{bot: b, adapter: adapter, quoter: quoter, store: store}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in       string
		wantCmd  string
		wantArgs string
	}{
		{in: "/addgroup Traders | link", wantCmd: "/addgroup", wantArgs: "Traders | link"},
		{in: "/AddGroup@ScannerBot x", wantCmd: "/addgroup", wantArgs: "x"},
		{in: "/eligible builderman", wantCmd: "/eligible", wantArgs: "builderman"},
		{in: "/eligible", wantCmd: "/eligible", wantArgs: ""},
		{in: ".scan", wantCmd: "", wantArgs: ".scan"},
		{in: "hello there", wantCmd: "", wantArgs: "hello there"},
	}
	for _, tt := range tests {
		cmd, args := splitCommand(tt.in)
		if cmd != tt.wantCmd || args != tt.wantArgs {
			t.Fatalf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, args, tt.wantCmd, tt.wantArgs)
		}
	}
}

func TestParseAddGroupArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		args    string
		want    registry.GroupRecord
		wantErr bool
	}{
		{
			name: "name and link",
			args: "Traders | https://www.roblox.com/groups/1/t",
			want: registry.GroupRecord{Name: "Traders", Link: "https://www.roblox.com/groups/1/t"},
		},
		{
			name: "with wait days",
			args: "Traders | https://www.roblox.com/groups/1/t | 30",
			want: registry.GroupRecord{Name: "Traders", Link: "https://www.roblox.com/groups/1/t", WaitDays: 30},
		},
		{
			name: "empty wait days segment",
			args: "Traders | https://www.roblox.com/groups/1/t | ",
			want: registry.GroupRecord{Name: "Traders", Link: "https://www.roblox.com/groups/1/t"},
		},
		{name: "missing link", args: "Traders", wantErr: true},
		{name: "blank link", args: "Traders | ", wantErr: true},
		{name: "bad wait days", args: "Traders | link | soon", wantErr: true},
		{name: "zero wait days", args: "Traders | link | 0", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseAddGroupArgs(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseAddGroupArgs(%q) accepted", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAddGroupArgs(%q): %v", tt.args, err)
			}
			if got != tt.want {
				t.Fatalf("parseAddGroupArgs(%q) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}

func TestScanTriggerRequiresReply(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{ScanChatID: -100, TriggerToken: ".scan"})

	tb.bot.dispatch(context.Background(), kit.Message{ID: 1, ChatID: -100, FromID: 7, Text: ".scan"})

	msg := tb.adapter.waitForMessage(t, "Reply to the message")
	if msg == "" {
		t.Fatal("expected usage hint")
	}
	if tb.quoter.count() != 0 {
		t.Fatalf("scan without a reply made %d quote calls", tb.quoter.count())
	}
}

func TestScanTriggerRunsQueuedScan(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{ScanChatID: -100, TriggerToken: ".scan"})

	reply := &kit.Message{ID: 1, ChatID: -100, Text: "https://www.roblox.com/game-pass/123/x"}
	tb.bot.dispatch(context.Background(), kit.Message{ID: 2, ChatID: -100, FromID: 7, Text: ".SCAN", ReplyTo: reply})

	out := tb.adapter.waitForMessage(t, "net payout: 70 Robux")
	if !strings.Contains(out, "game-pass/123") {
		t.Fatalf("report missing listing link:\n%s", out)
	}
}

func TestScanTriggerIgnoredOutsideScanChat(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{ScanChatID: -100, TriggerToken: ".scan"})

	reply := &kit.Message{ID: 1, ChatID: -200, Text: "https://www.roblox.com/game-pass/123/x"}
	tb.bot.dispatch(context.Background(), kit.Message{ID: 2, ChatID: -200, FromID: 7, Text: ".scan", ReplyTo: reply})

	time.Sleep(50 * time.Millisecond)
	if n := tb.quoter.count(); n != 0 {
		t.Fatalf("trigger outside the scan chat made %d quote calls", n)
	}
	if msgs := tb.adapter.messages(); len(msgs) != 0 {
		t.Fatalf("trigger outside the scan chat replied: %v", msgs)
	}
}

func TestScanTriggerCooldownIsSilent(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{ScanChatID: -100, TriggerToken: ".scan"})

	base := time.Now()
	tb.bot.now = func() time.Time { return base }

	reply := &kit.Message{ID: 1, ChatID: -100, Text: "https://www.roblox.com/game-pass/123/x"}
	tb.bot.dispatch(context.Background(), kit.Message{ID: 2, ChatID: -100, FromID: 7, Text: ".scan", ReplyTo: reply})
	tb.adapter.waitForMessage(t, "net payout")
	first := tb.quoter.count()

	// Second trigger inside the window: no reply, no external calls.
	tb.bot.now = func() time.Time { return base.Add(2 * time.Second) }
	sentBefore := len(tb.adapter.messages())
	tb.bot.dispatch(context.Background(), kit.Message{ID: 3, ChatID: -100, FromID: 7, Text: ".scan", ReplyTo: reply})

	time.Sleep(100 * time.Millisecond)
	if n := tb.quoter.count(); n != first {
		t.Fatalf("cooldown-rejected scan made %d extra quote calls", n-first)
	}
	if n := len(tb.adapter.messages()); n != sentBefore {
		t.Fatalf("cooldown rejection must be silent, got %d extra messages", n-sentBefore)
	}

	// After the window it runs again.
	tb.bot.now = func() time.Time { return base.Add(6 * time.Second) }
	tb.bot.dispatch(context.Background(), kit.Message{ID: 4, ChatID: -100, FromID: 7, Text: ".scan", ReplyTo: reply})
	deadline := time.Now().Add(3 * time.Second)
	for tb.quoter.count() == first && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tb.quoter.count() == first {
		t.Fatal("scan after the window did not run")
	}
}

func TestAddGroupOwnerOnly(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{OwnerUserIDs: []int64{42}, ScanChatID: -100, TriggerToken: ".scan"})

	tb.bot.dispatch(context.Background(), kit.Message{
		ID: 1, ChatID: -100, FromID: 7,
		Text: "/addgroup Traders | https://www.roblox.com/groups/1/t",
	})
	if msgs := tb.adapter.messages(); len(msgs) != 0 {
		t.Fatalf("non-owner got a reply: %v", msgs)
	}

	tb.bot.dispatch(context.Background(), kit.Message{
		ID: 2, ChatID: -100, FromID: 42,
		Text: "/addgroup Traders | https://www.roblox.com/groups/1/t | 30",
	})
	out := tb.adapter.waitForMessage(t, "Saved Traders (group 1, wait 30 days)")
	if !strings.Contains(out, "1 group(s)") {
		t.Fatalf("unexpected confirmation:\n%s", out)
	}

	groups, _ := tb.store.Load(context.Background())
	if len(groups) != 1 || groups[0].Name != "Traders" || groups[0].WaitDays != 30 {
		t.Fatalf("registry = %+v", groups)
	}
}

func TestAddGroupRejectsBadLink(t *testing.T) {
	t.Parallel()
	tb := newTestBot(t, Config{OwnerUserIDs: []int64{42}, ScanChatID: -100, TriggerToken: ".scan"})

	tb.bot.dispatch(context.Background(), kit.Message{
		ID: 1, ChatID: -100, FromID: 42,
		Text: "/addgroup Traders | https://example.com/groups/1",
	})
	tb.adapter.waitForMessage(t, "no group id")
}

func newEligibilityBot(t *testing.T, cfg Config, usersBody, groupsBody string) *testBot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			fmt.Fprint(w, usersBody)
			return
		}
		fmt.Fprint(w, groupsBody)
	}))
	t.Cleanup(srv.Close)

	tb := newTestBot(t, cfg)
	f := marketplace.NewFetcher(srv.Client(), logx.Nop())
	tb.bot.members = marketplace.NewMembershipClient(f, marketplace.MembershipConfig{
		UsersBase:  srv.URL,
		GroupsBase: srv.URL,
	}, logx.Nop())
	return tb
}

func TestEligibleReportsMembership(t *testing.T) {
	t.Parallel()
	tb := newEligibilityBot(t,
		Config{ScanChatID: -100, EligibilityChatID: -200, TriggerToken: ".scan"},
		`{"data":[{"id":156,"name":"builderman"}]}`,
		`{"data":[{"group":{"id":1}}]}`,
	)
	tb.store.groups = []registry.GroupRecord{
		{Name: "Traders", Link: "https://www.roblox.com/groups/1/t", WaitDays: 14},
		{Name: "Collectors", Link: "https://www.roblox.com/groups/2/c", WaitDays: 14},
	}

	tb.bot.handleEligible(context.Background(), kit.Message{ID: 1, ChatID: -200, FromID: 7, Text: "/eligible builderman"}, "builderman")

	out := tb.adapter.waitForMessage(t, "Membership report for builderman (id 156)")
	if !strings.Contains(out, "✅ Traders (1): Member") {
		t.Fatalf("missing member line:\n%s", out)
	}
	if !strings.Contains(out, "❌ Collectors (2): Not in Group") {
		t.Fatalf("missing non-member line:\n%s", out)
	}
}

func TestEligibleUnknownUser(t *testing.T) {
	t.Parallel()
	tb := newEligibilityBot(t,
		Config{ScanChatID: -100, TriggerToken: ".scan"},
		`{"data":[]}`,
		`{"data":[]}`,
	)

	tb.bot.handleEligible(context.Background(), kit.Message{ID: 1, ChatID: -200, FromID: 7}, "nobody")
	tb.adapter.waitForMessage(t, `No user named "nobody" found.`)
}

func TestEligibleIgnoredOutsideConfiguredChat(t *testing.T) {
	t.Parallel()
	tb := newEligibilityBot(t,
		Config{ScanChatID: -100, EligibilityChatID: -200, TriggerToken: ".scan"},
		`{"data":[{"id":156}]}`,
		`{"data":[]}`,
	)

	tb.bot.handleEligible(context.Background(), kit.Message{ID: 1, ChatID: -999, FromID: 7}, "builderman")
	time.Sleep(50 * time.Millisecond)
	if msgs := tb.adapter.messages(); len(msgs) != 0 {
		t.Fatalf("wrong-chat /eligible replied: %v", msgs)
	}
}

func TestEligibleUsage(t *testing.T) {
	t.Parallel()
	tb := newEligibilityBot(t,
		Config{ScanChatID: -100, TriggerToken: ".scan"},
		`{"data":[]}`,
		`{"data":[]}`,
	)

	tb.bot.handleEligible(context.Background(), kit.Message{ID: 1, ChatID: -200, FromID: 7}, "")
	tb.adapter.waitForMessage(t, "Usage: /eligible")
}
