package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/glaizaaaaaa2/scanner-bot/internal/bot"
	"github.com/glaizaaaaaa2/scanner-bot/internal/config"
	"github.com/glaizaaaaaa2/scanner-bot/internal/maintenance"
	"github.com/glaizaaaaaa2/scanner-bot/internal/marketplace"
	"github.com/glaizaaaaaa2/scanner-bot/internal/registry"
	"github.com/glaizaaaaaa2/scanner-bot/internal/scan"
	"github.com/glaizaaaaaa2/scanner-bot/internal/storage"
	"github.com/glaizaaaaaa2/scanner-bot/internal/transport/telegram"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	defer logSvc.Close()

	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return err
	}
	reqTimeout, err := config.ParseDurationOrDefault("marketplace.request_timeout", cfg.Marketplace.RequestTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	cooldown, err := config.ParseDurationOrDefault("scan.cooldown", cfg.Scan.Cooldown, scan.DefaultCooldown)
	if err != nil {
		return err
	}
	quoteDelay, err := config.ParseDurationOrDefault("scan.quote_delay", cfg.Scan.QuoteDelay, scan.DefaultQuoteDelay)
	if err != nil {
		return err
	}
	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}

	fetcher := marketplace.NewFetcher(&http.Client{Timeout: reqTimeout}, log.With(logx.String("comp", "fetch")))

	exp := cfg.Marketplace.Experiment.WithDefaults()
	pricing := marketplace.NewPricingClient(fetcher, marketplace.PricingConfig{
		EconomyBase:      cfg.Marketplace.EconomyBaseOrDefault(),
		DetailsBase:      cfg.Marketplace.DetailsBaseOrDefault(),
		SecurityCookie:   cfg.Marketplace.SecurityCookie,
		ThrottleRetryMax: cfg.Marketplace.ThrottleRetryMax,
	}, marketplace.ExperimentRules{
		Flags:         exp.Flags,
		FeatureTokens: exp.FeatureTokens,
	}, log.With(logx.String("comp", "pricing")))

	members := marketplace.NewMembershipClient(fetcher, marketplace.MembershipConfig{
		UsersBase:  cfg.Marketplace.UsersBaseOrDefault(),
		GroupsBase: cfg.Marketplace.GroupsBaseOrDefault(),
	}, log.With(logx.String("comp", "membership")))

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
		Seed: registry.GroupRecord{
			Name:     cfg.Storage.Seed.Name,
			Link:     cfg.Storage.Seed.Link,
			WaitDays: cfg.Storage.Seed.WaitDays,
		},
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	gate := scan.NewCooldownGate(cooldown)
	queue := scan.NewQueue(cfg.Scan.QueueSize, log.With(logx.String("comp", "queue")))
	queue.Start(ctx)

	scans := scan.NewService(pricing, quoteDelay, cfg.Scan.ChunkBudget, log.With(logx.String("comp", "scan")))

	b := bot.New(bot.Config{
		OwnerUserIDs:      cfg.Telegram.OwnerUserIDs,
		ScanChatID:        cfg.Telegram.ScanChatID,
		EligibilityChatID: cfg.Telegram.EligibilityChatID,
		TriggerToken:      cfg.Scan.TriggerTokenOrDefault(),
	}, adapter, queue, gate, scans, members, store, log.With(logx.String("comp", "bot")))

	schedule := strings.TrimSpace(cfg.Maintenance.PruneSchedule)
	if schedule == "" {
		schedule = config.DefaultPruneSchedule
	}
	maint, err := maintenance.New(gate, cooldown, schedule, log.With(logx.String("comp", "maintenance")))
	if err != nil {
		return fmt.Errorf("maintenance schedule: %w", err)
	}
	maint.Start()

	// Hot reload: log level and experiment detection data follow the file.
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		ch := mgr.Subscribe(1)
		for next := range ch {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File: logx.FileConfig{
					Enabled: next.Logging.File.Enabled,
					Path:    next.Logging.File.Path,
				},
			})
			e := next.Marketplace.Experiment.WithDefaults()
			pricing.SetExperimentRules(marketplace.ExperimentRules{
				Flags:         e.Flags,
				FeatureTokens: e.FeatureTokens,
			})
			log.Info("runtime config applied")
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("scanner bot started",
		logx.Int64("scan_chat", cfg.Telegram.ScanChatID),
		logx.String("trigger", cfg.Scan.TriggerTokenOrDefault()),
	)

	runErr := b.Run(ctx)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	queue.Stop(shutdownCtx)
	maint.Stop(shutdownCtx)
	return runErr
}
