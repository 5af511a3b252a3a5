package scheduler

import (
	"context"
	"errors"
	"time"

	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/skystack/fleetbill/internal/clock"
	daemonstatusdomain "github.com/skystack/fleetbill/internal/daemonstatus/domain"
	obsmetrics "github.com/skystack/fleetbill/internal/observability/metrics"
	"github.com/skystack/fleetbill/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingcycledomain.Service
	StatusSvc  daemonstatusdomain.Service
	Config     Config `optional:"true"`
}

// Scheduler is the in-process billing timer. On every tick it checks the
// standalone daemon's heartbeat and only runs a pass when the daemon looks
// dead; coordination happens purely through the shared status row.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	billingSvc billingcycledomain.Service
	statusSvc  daemonstatusdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil || p.StatusSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		billingSvc: p.BillingSvc,
		statusSvc:  p.StatusSvc,
	}, nil
}

// Tick runs one scheduling decision: defer to a live daemon, or run a pass.
// Returns the pass result when a pass ran, nil when deferred.
func (s *Scheduler) Tick(ctx context.Context) (*billingcycledomain.PassResult, error) {
	now := s.clock.Now()
	billingMetrics := obsmetrics.Billing()

	var heartbeatAt *time.Time
	projection, err := s.statusSvc.Latest(ctx)
	if err != nil {
		// Cannot read coordination state; skip this tick rather than risk a
		// concurrent pass against a healthy daemon.
		s.log.Warn("daemon status unavailable, skipping tick", zap.Error(err))
		return nil, err
	}
	if projection != nil {
		hb := projection.HeartbeatAt
		heartbeatAt = &hb
	}

	if !guard.ShouldEmbeddedRun(now, heartbeatAt) {
		s.log.Debug("deferring to billing daemon",
			zap.Time("daemon_heartbeat_at", projection.HeartbeatAt),
			zap.String("daemon_instance_id", projection.InstanceID),
		)
		billingMetrics.IncDeferral()
		return nil, nil
	}

	if heartbeatAt != nil {
		s.log.Warn("daemon heartbeat stale, embedded scheduler taking over",
			zap.Time("daemon_heartbeat_at", *heartbeatAt),
			zap.Duration("threshold", guard.WarningThreshold),
		)
	}

	start := s.clock.Now()
	billingMetrics.IncPassRun(obsmetrics.ExecutorEmbedded)
	result, err := s.billingSvc.RunPass(ctx)
	billingMetrics.ObservePassDuration(obsmetrics.ExecutorEmbedded, time.Since(start))
	if err != nil {
		billingMetrics.IncPassError(obsmetrics.ExecutorEmbedded)
		return nil, err
	}

	s.log.Info("billing pass completed",
		zap.Int("billed", result.BilledCount),
		zap.Int("failed", result.FailedCount),
		zap.String("total_amount", result.TotalAmount.String()),
		zap.Int64("total_hours", result.TotalHours),
	)
	return &result, nil
}

// RunForever ticks until ctx is canceled. A pass always finishes before the
// next tick is considered, so passes never overlap within this process.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.log.Warn("scheduler tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
