package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ActionBilled            = "billing.billed"
	ActionInsufficientFunds = "billing.failed_insufficient_funds"
	ActionError             = "billing.failed_error"
)

// ActivityEvent is one billing outcome emitted for the notification and
// activity-log collaborators. Delivery beyond this table is not our concern.
type ActivityEvent struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	OrgID      snowflake.ID      `gorm:"not null;index"`
	InstanceID snowflake.ID      `gorm:"not null;index"`
	Action     string            `gorm:"type:text;not null;index"`
	Amount     decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Hours      int64             `gorm:"not null;default:0"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ActivityEvent) TableName() string { return "activity_events" }

type Service interface {
	Record(ctx context.Context, orgID, instanceID snowflake.ID, action string, amount decimal.Decimal, hours int64, metadata map[string]any) error
}
