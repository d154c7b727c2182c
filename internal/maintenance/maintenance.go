// Package maintenance runs periodic housekeeping jobs on a cron schedule.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/glaizaaaaaa2/scanner-bot/internal/scan"
	logx "github.com/glaizaaaaaa2/scanner-bot/pkg/logx"
)

// cooldownRetention keeps cooldown entries well past the admission window so
// pruning can never race a pending rejection.
const cooldownRetentionFactor = 10

type Service struct {
	log  logx.Logger
	cron *cron.Cron
}

// New wires the cooldown prune job. schedule is a cron spec
// (e.g. "@every 10m").
func New(gate *scan.CooldownGate, window time.Duration, schedule string, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if window <= 0 {
		window = scan.DefaultCooldown
	}

	c := cron.New()
	retention := window * cooldownRetentionFactor
	_, err := c.AddFunc(schedule, func() {
		if removed := gate.Prune(retention, time.Now()); removed > 0 {
			log.Debug("cooldown entries pruned", logx.Int("removed", removed))
		}
	})
	if err != nil {
		return nil, err
	}
	return &Service{log: log, cron: c}, nil
}

func (s *Service) Start() {
	s.cron.Start()
	s.log.Debug("maintenance started")
}

func (s *Service) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Debug("maintenance stopped")
}
