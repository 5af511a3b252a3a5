package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/skystack/fleetbill/internal/activity/domain"
	"github.com/skystack/fleetbill/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) activitydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("activity.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, orgID, instanceID snowflake.ID, action string, amount decimal.Decimal, hours int64, metadata map[string]any) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	event := activitydomain.ActivityEvent{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		InstanceID: instanceID,
		Action:     action,
		Amount:     amount,
		Hours:      hours,
		Metadata:   metadata,
		CreatedAt:  s.clock.Now(),
	}

	s.log.Info("billing activity",
		zap.String("action", action),
		zap.String("instance_id", instanceID.String()),
		zap.String("amount", amount.String()),
		zap.Int64("hours", hours),
	)

	return s.db.WithContext(ctx).Create(&event).Error
}
