package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	activitydomain "github.com/skystack/fleetbill/internal/activity/domain"
	activityservice "github.com/skystack/fleetbill/internal/activity/service"
	billingcycledomain "github.com/skystack/fleetbill/internal/billingcycle/domain"
	"github.com/skystack/fleetbill/internal/clock"
	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	ledgerdomain "github.com/skystack/fleetbill/internal/ledger/domain"
	"github.com/skystack/fleetbill/internal/testdb"
	walletdomain "github.com/skystack/fleetbill/internal/wallet/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	node  *snowflake.Node
	svc   billingcycledomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn := testdb.Open(t)
	fc := clock.NewFakeClock(t0)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	activitySvc := activityservice.NewService(activityservice.ServiceParam{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
	})
	svc := NewService(ServiceParam{
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       fc,
		ActivitySvc: activitySvc,
	})
	return &fixture{db: conn, clock: fc, node: node, svc: svc}
}

// seedInstance creates an instance priced at $0.10/hour with no backups
// unless overridden by mutate.
func (f *fixture) seedInstance(t *testing.T, orgID snowflake.ID, createdAt time.Time, mutate func(*instancedomain.Instance)) instancedomain.Instance {
	t.Helper()
	inst := instancedomain.Instance{
		ID:                 f.node.Generate(),
		OrgID:              orgID,
		Name:               "vm-" + orgID.String(),
		BaseMonthlyPrice:   dec(t, "65.70"),
		MarkupMonthlyPrice: dec(t, "7.30"),
		BackupMonthlyPrice: decimal.Zero,
		BackupMarkupPrice:  decimal.Zero,
		BackupConfig:       instancedomain.BackupNone,
		CreatedAt:          createdAt,
	}
	if mutate != nil {
		mutate(&inst)
	}
	require.NoError(t, f.db.Create(&inst).Error)
	return inst
}

func (f *fixture) seedWallet(t *testing.T, orgID snowflake.ID, balance decimal.Decimal) walletdomain.Wallet {
	t.Helper()
	w := walletdomain.Wallet{
		ID:        f.node.Generate(),
		OrgID:     orgID,
		Balance:   balance,
		Currency:  "USD",
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, f.db.Create(&w).Error)
	return w
}

func (f *fixture) reloadInstance(t *testing.T, id snowflake.ID) instancedomain.Instance {
	t.Helper()
	var inst instancedomain.Instance
	require.NoError(t, f.db.First(&inst, "id = ?", id).Error)
	return inst
}

func (f *fixture) reloadWallet(t *testing.T, id snowflake.ID) walletdomain.Wallet {
	t.Helper()
	var w walletdomain.Wallet
	require.NoError(t, f.db.First(&w, "id = ?", id).Error)
	return w
}

func (f *fixture) cycleRecords(t *testing.T, instanceID snowflake.ID) []billingcycledomain.BillingCycleRecord {
	t.Helper()
	var records []billingcycledomain.BillingCycleRecord
	require.NoError(t, f.db.Where("instance_id = ?", instanceID).Order("created_at").Find(&records).Error)
	return records
}

func TestRunPassChargesDueInstance(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	wallet := f.seedWallet(t, org, dec(t, "10"))

	f.clock.Set(t0.Add(3*time.Hour + 15*time.Minute))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.BilledCount)
	require.Equal(t, 0, result.FailedCount)
	require.Equal(t, int64(3), result.TotalHours)
	require.True(t, result.TotalAmount.Equal(dec(t, "0.30")), "got %s", result.TotalAmount)

	reloaded := f.reloadInstance(t, inst.ID)
	require.NotNil(t, reloaded.LastBilledAt)
	require.True(t, reloaded.LastBilledAt.Equal(t0.Add(3*time.Hour)), "got %s", reloaded.LastBilledAt)

	w := f.reloadWallet(t, wallet.ID)
	require.True(t, w.Balance.Equal(dec(t, "9.70")), "got %s", w.Balance)

	records := f.cycleRecords(t, inst.ID)
	require.Len(t, records, 1)
	require.Equal(t, billingcycledomain.BillingCycleStatusBilled, records[0].Status)
	require.NotNil(t, records[0].TransactionID)
	require.True(t, records[0].PeriodStart.Equal(t0))
	require.True(t, records[0].PeriodEnd.Equal(t0.Add(3*time.Hour)))

	var txn ledgerdomain.WalletTransaction
	require.NoError(t, f.db.First(&txn, "id = ?", *records[0].TransactionID).Error)
	require.Equal(t, ledgerdomain.TransactionDirectionDebit, txn.Direction)
	require.Equal(t, ledgerdomain.SourceTypeBillingCycle, txn.SourceType)
	require.True(t, txn.Amount.Equal(dec(t, "0.30")))

	var events []activitydomain.ActivityEvent
	require.NoError(t, f.db.Where("instance_id = ?", inst.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, activitydomain.ActionBilled, events[0].Action)
	require.Equal(t, int64(3), events[0].Hours)
}

func TestRunPassInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	wallet := f.seedWallet(t, org, dec(t, "0.20"))

	f.clock.Set(t0.Add(3*time.Hour + 15*time.Minute))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)

	require.Equal(t, 0, result.BilledCount)
	require.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	require.Contains(t, result.Failures[0].Reason, "insufficient")

	// Wallet and hour boundary untouched: the instance stays eligible for
	// the full window once funded.
	w := f.reloadWallet(t, wallet.ID)
	require.True(t, w.Balance.Equal(dec(t, "0.20")), "got %s", w.Balance)
	require.False(t, w.Balance.IsNegative())
	require.Nil(t, f.reloadInstance(t, inst.ID).LastBilledAt)

	records := f.cycleRecords(t, inst.ID)
	require.Len(t, records, 1)
	require.Equal(t, billingcycledomain.BillingCycleStatusFailed, records[0].Status)
	require.Nil(t, records[0].TransactionID)
	require.Equal(t, "insufficient_funds", records[0].Metadata["reason"])

	var events []activitydomain.ActivityEvent
	require.NoError(t, f.db.Where("instance_id = ?", inst.ID).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, activitydomain.ActionInsufficientFunds, events[0].Action)
}

func TestRunPassIdempotentAdvance(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	f.seedWallet(t, org, dec(t, "10"))

	f.clock.Set(t0.Add(3*time.Hour + 15*time.Minute))
	first, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.BilledCount)

	// Immediate re-run with no credit in between: the advanced boundary
	// leaves less than one whole hour, so nothing is written.
	second, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, second.BilledCount)
	require.Equal(t, 0, second.FailedCount)

	require.Len(t, f.cycleRecords(t, inst.ID), 1)
}

func TestRunPassFloorSemantics(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	f.seedWallet(t, org, dec(t, "10"))

	f.clock.Set(t0.Add(time.Hour + 59*time.Minute))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), result.TotalHours)

	reloaded := f.reloadInstance(t, inst.ID)
	require.True(t, reloaded.LastBilledAt.Equal(t0.Add(time.Hour)))

	// Exactly one more whole hour since the new boundary.
	f.clock.Set(t0.Add(3 * time.Hour))
	result, err = f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), result.TotalHours)
	require.True(t, f.reloadInstance(t, inst.ID).LastBilledAt.Equal(t0.Add(3*time.Hour)))
}

func TestRunPassSkipsInstanceNotYetDue(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	f.seedWallet(t, org, dec(t, "10"))

	f.clock.Set(t0.Add(30 * time.Minute))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.BilledCount)
	require.Equal(t, 0, result.FailedCount)
	require.Empty(t, f.cycleRecords(t, inst.ID))
}

func TestRunPassPreservesHourBoundary(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	anchor := t0.Add(24 * time.Hour)
	inst := f.seedInstance(t, org, t0, func(i *instancedomain.Instance) {
		i.LastBilledAt = &anchor
	})
	f.seedWallet(t, org, dec(t, "10"))

	// Wall clock lands mid-hour; the boundary still advances by whole hours
	// from the previous boundary, not to "now".
	f.clock.Set(anchor.Add(5*time.Hour + 37*time.Minute))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), result.TotalHours)
	require.True(t, f.reloadInstance(t, inst.ID).LastBilledAt.Equal(anchor.Add(5*time.Hour)))
}

func TestRunPassPartialFailureIsolation(t *testing.T) {
	f := newFixture(t)

	orgA := f.node.Generate()
	orgB := f.node.Generate()
	orgC := f.node.Generate()

	instA := f.seedInstance(t, orgA, t0, nil)
	instB := f.seedInstance(t, orgB, t0, nil) // no wallet: charge errors out
	instC := f.seedInstance(t, orgC, t0, nil)
	f.seedWallet(t, orgA, dec(t, "10"))
	f.seedWallet(t, orgC, dec(t, "10"))

	f.clock.Set(t0.Add(2 * time.Hour))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, result.BilledCount)
	require.Equal(t, 1, result.FailedCount)
	require.Len(t, result.Failures, 1)
	require.Equal(t, instB.ID, result.Failures[0].InstanceID)

	require.NotNil(t, f.reloadInstance(t, instA.ID).LastBilledAt)
	require.Nil(t, f.reloadInstance(t, instB.ID).LastBilledAt)
	require.NotNil(t, f.reloadInstance(t, instC.ID).LastBilledAt)

	// The failed attempt still leaves an audit-trail record.
	records := f.cycleRecords(t, instB.ID)
	require.Len(t, records, 1)
	require.Equal(t, billingcycledomain.BillingCycleStatusFailed, records[0].Status)
	require.Equal(t, "error", records[0].Metadata["reason"])
}

func TestRunPassBillsBackupSurcharge(t *testing.T) {
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, func(i *instancedomain.Instance) {
		i.BackupConfig = instancedomain.BackupDaily
		i.BackupMonthlyPrice = dec(t, "14.60")
	})
	f.seedWallet(t, org, dec(t, "10"))

	// base 0.10/h + daily backup 14.60*1.5/730 = 0.03/h
	f.clock.Set(t0.Add(2 * time.Hour))
	result, err := f.svc.RunPass(context.Background())
	require.NoError(t, err)
	require.True(t, result.TotalAmount.Equal(dec(t, "0.26")), "got %s", result.TotalAmount)

	records := f.cycleRecords(t, inst.ID)
	require.Len(t, records, 1)
	backupAmount, err := decimal.NewFromString(records[0].Metadata["backup_amount"].(string))
	require.NoError(t, err)
	require.True(t, backupAmount.Equal(dec(t, "0.06")), "got %s", backupAmount)
}

func TestRunPassSecondExecutorSeesAdvancedBoundary(t *testing.T) {
	// Simulates the near-simultaneous dual-executor window: the second
	// RunPass observes the boundary the first one committed and skips.
	f := newFixture(t)
	org := f.node.Generate()
	inst := f.seedInstance(t, org, t0, nil)
	wallet := f.seedWallet(t, org, dec(t, "10"))

	f.clock.Set(t0.Add(90 * time.Minute))
	for i := 0; i < 2; i++ {
		_, err := f.svc.RunPass(context.Background())
		require.NoError(t, err)
	}

	records := f.cycleRecords(t, inst.ID)
	require.Len(t, records, 1)
	w := f.reloadWallet(t, wallet.ID)
	require.True(t, w.Balance.Equal(dec(t, "9.90")), "charged more than once: %s", w.Balance)
}
