// Package daemon implements the standalone billing process: a heartbeat
// timer proving liveness to the embedded scheduler, and a billing timer
// that runs reconciliation passes unconditionally.
package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/skystack/fleetbill/internal/clock"
	"github.com/skystack/fleetbill/internal/config"
	daemonstatusdomain "github.com/skystack/fleetbill/internal/daemonstatus/domain"
	obsmetrics "github.com/skystack/fleetbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const heartbeatInterval = 60 * time.Second

var ErrInvalidConfig = errors.New("daemon: missing dependencies")

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	BillingSvc billingcycledomain.Service
	StatusSvc  daemonstatusdomain.Service
}

type Daemon struct {
	id         InstanceID
	log        *zap.Logger
	clock      clock.Clock
	billingSvc billingcycledomain.Service
	statusSvc  daemonstatusdomain.Service

	billingInterval time.Duration

	stop chan struct{}
	done chan struct{}
}

func New(p Params) (*Daemon, error) {
	if p.Log == nil || p.Clock == nil || p.BillingSvc == nil || p.StatusSvc == nil {
		return nil, ErrInvalidConfig
	}
	id := NewInstanceID()
	return &Daemon{
		id:              id,
		log:             p.Log.Named("daemon").With(zap.String("instance_id", id.String())),
		clock:           p.Clock,
		billingSvc:      p.BillingSvc,
		statusSvc:       p.StatusSvc,
		billingInterval: p.Cfg.BillingInterval(),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}, nil
}

func (d *Daemon) ID() InstanceID { return d.id }

// Start registers this daemon instance as running and launches the timer
// loop. Registration failure is fatal: a daemon that cannot write its status
// row must not bill, because the embedded scheduler could not see it.
func (d *Daemon) Start(ctx context.Context) error {
	now := d.clock.Now()
	if err := d.statusSvc.Register(ctx, d.id.String(), now, map[string]any{
		"billing_interval_minutes": int(d.billingInterval / time.Minute),
	}); err != nil {
		return err
	}
	d.log.Info("billing daemon started",
		zap.Duration("billing_interval", d.billingInterval),
		zap.Duration("heartbeat_interval", heartbeatInterval),
	)

	go d.loop()
	return nil
}

// Stop signals the loop to finish and blocks until any in-flight billing
// pass completes, then marks the status row stopped. A pass is never aborted
// mid-transaction.
func (d *Daemon) Stop(ctx context.Context) error {
	close(d.stop)
	select {
	case <-d.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	now := d.clock.Now()
	if err := d.statusSvc.MarkStopped(ctx, d.id.String(), now); err != nil {
		d.log.Warn("failed to mark daemon stopped", zap.Error(err))
		return err
	}
	d.log.Info("billing daemon stopped")
	return nil
}

// loop runs the two timers. The heartbeat gets its own goroutine so a slow
// billing pass never starves the liveness signal; billing ticks stay on one
// goroutine, so passes are serialized and can never overlap each other.
func (d *Daemon) loop() {
	defer close(d.done)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-heartbeat.C:
				d.beat()
			}
		}
	}()

	billing := time.NewTicker(d.billingInterval)
	defer billing.Stop()

	// One pass immediately at startup.
	d.runPass()

	for {
		select {
		case <-d.stop:
			wg.Wait()
			return
		case <-billing.C:
			d.runPass()
		}
	}
}

func (d *Daemon) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := d.clock.Now()
	if err := d.statusSvc.Heartbeat(ctx, d.id.String(), now); err != nil {
		d.log.Warn("heartbeat write failed", zap.Error(err))
		return
	}
	obsmetrics.Billing().IncHeartbeat()
}

func (d *Daemon) runPass() {
	// Passes run against a background context: a shutdown signal must not
	// cancel an in-flight pass, only prevent the next one.
	ctx := context.Background()
	billingMetrics := obsmetrics.Billing()

	start := d.clock.Now()
	billingMetrics.IncPassRun(obsmetrics.ExecutorDaemon)
	result, err := d.billingSvc.RunPass(ctx)
	billingMetrics.ObservePassDuration(obsmetrics.ExecutorDaemon, time.Since(start))
	if err != nil {
		billingMetrics.IncPassError(obsmetrics.ExecutorDaemon)
		d.log.Error("billing pass failed", zap.Error(err))
	} else {
		d.log.Info("billing pass completed",
			zap.Int("billed", result.BilledCount),
			zap.Int("failed", result.FailedCount),
			zap.String("total_amount", result.TotalAmount.String()),
			zap.Int64("total_hours", result.TotalHours),
		)
	}

	if statusErr := d.statusSvc.RecordPass(ctx, d.id.String(), d.clock.Now(), result, err); statusErr != nil {
		d.log.Warn("failed to record pass result", zap.Error(statusErr))
	}
}

var Module = fx.Module("daemon",
	fx.Provide(New),
)

// Start wires the daemon into the fx lifecycle: registration on start,
// graceful drain on termination signals.
func Start(lc fx.Lifecycle, d *Daemon) {
	lc.Append(fx.Hook{
		OnStart: d.Start,
		OnStop:  d.Stop,
	})
}
