package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/skystack/fleetbill/internal/activity/domain"
	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/skystack/fleetbill/internal/clock"
	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	ledgerdomain "github.com/skystack/fleetbill/internal/ledger/domain"
	obsmetrics "github.com/skystack/fleetbill/internal/observability/metrics"
	"github.com/skystack/fleetbill/internal/rating"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	ActivitySvc activitydomain.Service
}

// Service runs billing reconciliation passes. It is the single code path
// that debits wallets and advances instances' last_billed_at; both the
// embedded scheduler and the standalone daemon call into it.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	activitySvc activitydomain.Service
}

func NewService(p ServiceParam) billingcycledomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billingcycle.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		activitySvc: p.ActivitySvc,
	}
}

const (
	outcomeSkipped      = "skipped"
	outcomeBilled       = "billed"
	outcomeInsufficient = "insufficient_funds"
)

type chargeOutcome struct {
	kind   string
	orgID  snowflake.ID
	amount decimal.Decimal
	hours  int64
	reason string
}

// RunPass reconciles every instance due for charging. One transaction per
// instance: a failure on instance N never rolls back instances 1..N-1, and a
// concurrent pass from the other executor is defused by the locked re-read of
// last_billed_at inside each transaction.
func (s *Service) RunPass(ctx context.Context) (billingcycledomain.PassResult, error) {
	now := s.clock.Now()
	result := billingcycledomain.PassResult{TotalAmount: decimal.Zero}

	due, err := s.listDueInstances(ctx, now)
	if err != nil {
		return result, err
	}
	if len(due) == 0 {
		return result, nil
	}

	billingMetrics := obsmetrics.Billing()

	for _, instanceID := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		outcome, chargeErr := s.chargeInstance(ctx, instanceID, now)
		if chargeErr != nil {
			s.log.Error("instance charge failed",
				zap.String("instance_id", instanceID.String()),
				zap.Error(chargeErr),
			)
			result.FailedCount++
			result.Failures = append(result.Failures, billingcycledomain.PassFailure{
				InstanceID: instanceID,
				Reason:     chargeErr.Error(),
			})
			s.recordErrorAttempt(ctx, instanceID, now, chargeErr)
			s.emitEvent(ctx, outcome.orgID, instanceID, activitydomain.ActionError, decimal.Zero, 0, map[string]any{
				"error": chargeErr.Error(),
			})
			billingMetrics.IncUnitOutcome(obsmetrics.OutcomeError)
			continue
		}

		switch outcome.kind {
		case outcomeBilled:
			result.BilledCount++
			result.TotalAmount = result.TotalAmount.Add(outcome.amount)
			result.TotalHours += outcome.hours
			s.emitEvent(ctx, outcome.orgID, instanceID, activitydomain.ActionBilled, outcome.amount, outcome.hours, nil)
			billingMetrics.IncUnitOutcome(obsmetrics.OutcomeBilled)
			amountFloat, _ := outcome.amount.Float64()
			billingMetrics.AddAmountCharged("USD", amountFloat)
		case outcomeInsufficient:
			result.FailedCount++
			result.Failures = append(result.Failures, billingcycledomain.PassFailure{
				InstanceID: instanceID,
				Reason:     outcome.reason,
			})
			s.emitEvent(ctx, outcome.orgID, instanceID, activitydomain.ActionInsufficientFunds, outcome.amount, outcome.hours, map[string]any{
				"shortfall": outcome.reason,
			})
			billingMetrics.IncUnitOutcome(obsmetrics.OutcomeInsufficientFunds)
		case outcomeSkipped:
			// Another executor advanced the hour boundary first, or less
			// than one whole hour has elapsed. Nothing written.
		}
	}

	return result, nil
}

// listDueInstances fetches candidates with last_billed_at null or older than
// one hour. Eligibility is re-checked under lock per instance.
func (s *Service) listDueInstances(ctx context.Context, now time.Time) ([]snowflake.ID, error) {
	cutoff := now.Add(-time.Hour)
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id
		 FROM instances
		 WHERE last_billed_at IS NULL OR last_billed_at <= ?
		 ORDER BY id`,
		cutoff,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Service) chargeInstance(ctx context.Context, instanceID snowflake.ID, now time.Time) (chargeOutcome, error) {
	outcome := chargeOutcome{kind: outcomeSkipped, amount: decimal.Zero}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := s.lockInstance(ctx, tx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return nil
		}
		outcome.orgID = inst.OrgID

		// Recompute under lock. Whichever executor committed first already
		// advanced last_billed_at, so the loser sees hours < 1 and skips.
		anchor := inst.BillingAnchor()
		hours := int64(now.Sub(anchor) / time.Hour)
		if hours < 1 {
			return nil
		}

		cost := rating.Compute(rating.PricingFor(*inst), inst.BackupConfig, hours)
		periodStart := anchor
		periodEnd := anchor.Add(time.Duration(hours) * time.Hour)

		wallet, err := s.lockWallet(ctx, tx, inst.OrgID)
		if err != nil {
			return err
		}
		if wallet == nil {
			return walletdomain.ErrWalletNotFound
		}

		if wallet.Balance.LessThan(cost.TotalAmount) {
			shortfall := cost.TotalAmount.Sub(wallet.Balance)
			record := billingcycledomain.BillingCycleRecord{
				ID:          s.genID.Generate(),
				InstanceID:  inst.ID,
				OrgID:       inst.OrgID,
				PeriodStart: periodStart,
				PeriodEnd:   periodEnd,
				HourlyRate:  cost.HourlyRate,
				Amount:      cost.TotalAmount,
				Status:      billingcycledomain.BillingCycleStatusFailed,
				Metadata: map[string]any{
					"reason":    "insufficient_funds",
					"hours":     hours,
					"shortfall": shortfall.String(),
					"balance":   wallet.Balance.String(),
				},
				CreatedAt: now,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			// last_billed_at stays put so the instance is re-evaluated for
			// the full window once funded.
			outcome.kind = outcomeInsufficient
			outcome.amount = cost.TotalAmount
			outcome.hours = hours
			outcome.reason = "insufficient funds, short " + shortfall.String()
			return nil
		}

		newBalance := wallet.Balance.Sub(cost.TotalAmount)
		if err := tx.Exec(
			`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
			newBalance, now, wallet.ID,
		).Error; err != nil {
			return err
		}

		txn := ledgerdomain.WalletTransaction{
			ID:         s.genID.Generate(),
			OrgID:      inst.OrgID,
			WalletID:   wallet.ID,
			Direction:  ledgerdomain.TransactionDirectionDebit,
			SourceType: ledgerdomain.SourceTypeBillingCycle,
			SourceID:   inst.ID,
			Amount:     cost.TotalAmount,
			Currency:   wallet.Currency,
			OccurredAt: now,
			CreatedAt:  now,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		record := billingcycledomain.BillingCycleRecord{
			ID:            s.genID.Generate(),
			InstanceID:    inst.ID,
			OrgID:         inst.OrgID,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			HourlyRate:    cost.HourlyRate,
			Amount:        cost.TotalAmount,
			Status:        billingcycledomain.BillingCycleStatusBilled,
			TransactionID: &txn.ID,
			Metadata: map[string]any{
				"hours":         hours,
				"base_amount":   cost.BaseAmount.String(),
				"backup_amount": cost.BackupAmount.String(),
			},
			CreatedAt: now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		// Advance to the exact hour boundary, never to "now": the leftover
		// fraction of an hour stays unbilled until it completes, and a retry
		// re-derives the same window.
		if err := tx.Exec(
			`UPDATE instances SET last_billed_at = ? WHERE id = ?`,
			periodEnd, inst.ID,
		).Error; err != nil {
			return err
		}

		outcome.kind = outcomeBilled
		outcome.amount = cost.TotalAmount
		outcome.hours = hours
		return nil
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (s *Service) lockInstance(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*instancedomain.Instance, error) {
	var inst instancedomain.Instance
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, name, base_monthly_price, markup_monthly_price,
		        backup_monthly_price, backup_markup_price, backup_config,
		        created_at, last_billed_at
		 FROM instances
		 WHERE id = ?
		 FOR UPDATE`,
		id,
	).Scan(&inst).Error
	if err != nil {
		return nil, err
	}
	if inst.ID == 0 {
		return nil, nil
	}
	return &inst, nil
}

func (s *Service) lockWallet(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*walletdomain.Wallet, error) {
	var wallet walletdomain.Wallet
	err := tx.WithContext(ctx).Raw(
		`SELECT id, org_id, balance, currency
		 FROM wallets
		 WHERE org_id = ?
		 FOR UPDATE`,
		orgID,
	).Scan(&wallet).Error
	if err != nil {
		return nil, err
	}
	if wallet.ID == 0 {
		return nil, nil
	}
	return &wallet, nil
}

// recordErrorAttempt writes the audit-trail row for a charge that died with
// an unexpected error. Best effort: the charge transaction already rolled
// back, and this must not fail the rest of the pass.
func (s *Service) recordErrorAttempt(ctx context.Context, instanceID snowflake.ID, now time.Time, cause error) {
	var orgID snowflake.ID
	if err := s.db.WithContext(ctx).Raw(
		`SELECT org_id FROM instances WHERE id = ?`, instanceID,
	).Scan(&orgID).Error; err != nil {
		return
	}

	record := billingcycledomain.BillingCycleRecord{
		ID:          s.genID.Generate(),
		InstanceID:  instanceID,
		OrgID:       orgID,
		PeriodStart: now,
		PeriodEnd:   now,
		HourlyRate:  decimal.Zero,
		Amount:      decimal.Zero,
		Status:      billingcycledomain.BillingCycleStatusFailed,
		Metadata: map[string]any{
			"reason": "error",
			"error":  cause.Error(),
		},
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.log.Warn("failed to record charge error", zap.Error(err))
	}
}

func (s *Service) emitEvent(ctx context.Context, orgID, instanceID snowflake.ID, action string, amount decimal.Decimal, hours int64, metadata map[string]any) {
	if s.activitySvc == nil {
		return
	}
	if err := s.activitySvc.Record(ctx, orgID, instanceID, action, amount, hours, metadata); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("activity event emission failed",
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
