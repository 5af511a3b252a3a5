package rating

import (
	"testing"

	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBaseHourlyRateUsesFlatMonthlyDivisor(t *testing.T) {
	p := Pricing{BaseMonthly: dec("65.70"), MarkupMonthly: dec("7.30")}
	// (65.70 + 7.30) / 730 = 0.10
	require.True(t, BaseHourlyRate(p).Equal(dec("0.1")), "got %s", BaseHourlyRate(p))
}

func TestComputeNoBackup(t *testing.T) {
	p := Pricing{BaseMonthly: dec("65.70"), MarkupMonthly: dec("7.30")}
	cost := Compute(p, instancedomain.BackupNone, 3)

	require.True(t, cost.BackupAmount.IsZero())
	require.True(t, cost.TotalAmount.Equal(dec("0.30")), "got %s", cost.TotalAmount)
	require.True(t, cost.BaseAmount.Equal(cost.TotalAmount))
	require.True(t, cost.HourlyRate.Equal(dec("0.10")), "got %s", cost.HourlyRate)
}

func TestComputeDailyBackupSurcharge(t *testing.T) {
	p := Pricing{
		BaseMonthly:   dec("73"),
		BackupMonthly: dec("14.60"),
	}
	cost := Compute(p, instancedomain.BackupDaily, 10)

	// base: 73/730 = 0.10/h; backup: 14.60*1.5/730 = 0.03/h
	require.True(t, cost.BaseAmount.Equal(dec("1.00")), "got %s", cost.BaseAmount)
	require.True(t, cost.BackupAmount.Equal(dec("0.30")), "got %s", cost.BackupAmount)
	require.True(t, cost.TotalAmount.Equal(dec("1.30")), "got %s", cost.TotalAmount)
}

func TestComputeWeeklyBackupFlat(t *testing.T) {
	p := Pricing{
		BaseMonthly:   dec("73"),
		BackupMonthly: dec("14.60"),
		BackupMarkup:  dec("7.30"),
	}
	cost := Compute(p, instancedomain.BackupWeekly, 1)

	// backup: (14.60 + 7.30)/730 = 0.03/h, no daily multiplier
	require.True(t, cost.BackupAmount.Equal(dec("0.03")), "got %s", cost.BackupAmount)
}

func TestComputeRoundsToFourPlaces(t *testing.T) {
	p := Pricing{BaseMonthly: dec("10")}
	cost := Compute(p, instancedomain.BackupNone, 1)

	// 10/730 = 0.0136986...; internal precision is 4 places
	require.True(t, cost.TotalAmount.Equal(dec("0.0137")), "got %s", cost.TotalAmount)
	require.LessOrEqual(t, int(-cost.TotalAmount.Exponent()), 4)
}

func TestComputeZeroHoursIsFree(t *testing.T) {
	p := Pricing{BaseMonthly: dec("73")}
	cost := Compute(p, instancedomain.BackupNone, 0)
	require.True(t, cost.TotalAmount.IsZero())
}

func TestComputePanicsOnNegativeHours(t *testing.T) {
	require.Panics(t, func() {
		Compute(Pricing{}, instancedomain.BackupNone, -1)
	})
}

func TestComputePanicsOnNegativePrice(t *testing.T) {
	require.Panics(t, func() {
		Compute(Pricing{BaseMonthly: dec("-1")}, instancedomain.BackupNone, 1)
	})
}

func TestComputeDeterministic(t *testing.T) {
	p := Pricing{BaseMonthly: dec("11.11"), MarkupMonthly: dec("2.22"), BackupMonthly: dec("3.33")}
	a := Compute(p, instancedomain.BackupDaily, 7)
	b := Compute(p, instancedomain.BackupDaily, 7)
	require.True(t, a.TotalAmount.Equal(b.TotalAmount))
	require.True(t, a.HourlyRate.Equal(b.HourlyRate))
}
