package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/skystack/fleetbill/internal/clock"
	daemonstatusdomain "github.com/skystack/fleetbill/internal/daemonstatus/domain"
	"github.com/skystack/fleetbill/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func NewService(p ServiceParam) daemonstatusdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("daemonstatus.service"),
		clock: p.Clock,
	}
}

func (s *Service) Register(ctx context.Context, instanceID string, startedAt time.Time, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	row := daemonstatusdomain.DaemonStatus{
		InstanceID:  instanceID,
		Status:      daemonstatusdomain.DaemonStateRunning,
		HeartbeatAt: startedAt,
		TotalAmount: decimal.Zero,
		StartedAt:   startedAt,
		Metadata:    metadata,
		UpdatedAt:   startedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "instance_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "heartbeat_at", "started_at", "error_message", "metadata", "updated_at",
		}),
	}).Create(&row).Error
}

func (s *Service) Heartbeat(ctx context.Context, instanceID string, at time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE daemon_statuses SET heartbeat_at = ?, updated_at = ? WHERE instance_id = ?`,
		at, at, instanceID,
	).Error
}

func (s *Service) RecordPass(ctx context.Context, instanceID string, at time.Time, result billingcycledomain.PassResult, runErr error) error {
	success := runErr == nil
	errorMessage := ""
	if runErr != nil {
		errorMessage = runErr.Error()
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE daemon_statuses
		 SET last_run_at = ?, last_run_success = ?, instances_billed = ?,
		     total_amount = ?, total_hours = ?, error_message = ?, updated_at = ?
		 WHERE instance_id = ?`,
		at, success, result.BilledCount,
		result.TotalAmount, result.TotalHours, errorMessage, at,
		instanceID,
	).Error
}

func (s *Service) MarkStopped(ctx context.Context, instanceID string, at time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE daemon_statuses SET status = ?, updated_at = ? WHERE instance_id = ?`,
		daemonstatusdomain.DaemonStateStopped, at, instanceID,
	).Error
}

func (s *Service) MarkError(ctx context.Context, instanceID string, message string, at time.Time) error {
	return s.db.WithContext(ctx).Exec(
		`UPDATE daemon_statuses SET status = ?, error_message = ?, updated_at = ? WHERE instance_id = ?`,
		daemonstatusdomain.DaemonStateError, message, at, instanceID,
	).Error
}

// Latest returns the most recently heartbeating daemon row projected with
// derived staleness, or nil when no daemon ever registered.
func (s *Service) Latest(ctx context.Context) (*daemonstatusdomain.Projection, error) {
	var row daemonstatusdomain.DaemonStatus
	err := s.db.WithContext(ctx).Raw(
		`SELECT *
		 FROM daemon_statuses
		 ORDER BY heartbeat_at DESC
		 LIMIT 1`,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.InstanceID == "" {
		return nil, nil
	}

	now := s.clock.Now()
	stale := guard.IsStale(now, row.HeartbeatAt)
	return &daemonstatusdomain.Projection{
		DaemonStatus:             row,
		WarningThresholdExceeded: stale,
		IsStale:                  stale,
	}, nil
}
