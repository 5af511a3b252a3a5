package domain

import (
	"context"
	"time"

	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DaemonState is the lifecycle state recorded by a billing daemon for itself.
type DaemonState string

const (
	DaemonStateRunning DaemonState = "running"
	DaemonStateStopped DaemonState = "stopped"
	DaemonStateError   DaemonState = "error"
)

// DaemonStatus is one daemon process's self-reported row, keyed by its
// host+pid instance identifier. A heartbeat that stops advancing is the
// liveness signal the embedded scheduler coordinates on; a stale row is
// meaningful data, not an error.
type DaemonStatus struct {
	InstanceID      string            `gorm:"primaryKey;type:text"`
	Status          DaemonState       `gorm:"type:text;not null"`
	HeartbeatAt     time.Time         `gorm:"not null;index"`
	LastRunAt       *time.Time        `gorm:""`
	LastRunSuccess  *bool             `gorm:""`
	InstancesBilled int               `gorm:"not null;default:0"`
	TotalAmount     decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	TotalHours      int64             `gorm:"not null;default:0"`
	ErrorMessage    string            `gorm:"type:text;not null;default:''"`
	StartedAt       time.Time         `gorm:"not null"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DaemonStatus) TableName() string { return "daemon_statuses" }

// Projection is the read-only status view served to the operations
// dashboard, with staleness derived against the coordination threshold.
type Projection struct {
	DaemonStatus
	WarningThresholdExceeded bool `json:"warning_threshold_exceeded"`
	IsStale                  bool `json:"is_stale"`
}

type Service interface {
	// Register upserts the daemon's own row to running at startup.
	Register(ctx context.Context, instanceID string, startedAt time.Time, metadata map[string]any) error
	// Heartbeat unconditionally touches heartbeat_at.
	Heartbeat(ctx context.Context, instanceID string, at time.Time) error
	// RecordPass writes the outcome of one billing pass into the row.
	RecordPass(ctx context.Context, instanceID string, at time.Time, result billingcycledomain.PassResult, runErr error) error
	MarkStopped(ctx context.Context, instanceID string, at time.Time) error
	MarkError(ctx context.Context, instanceID string, message string, at time.Time) error
	// Latest returns the most recently heartbeating daemon row, or nil when
	// no daemon has ever registered.
	Latest(ctx context.Context) (*Projection, error)
}
