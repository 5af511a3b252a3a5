// Package rating computes hourly usage costs. Everything here is pure: no
// I/O, no clock reads, deterministic for a given input.
package rating

import (
	"fmt"

	instancedomain "github.com/skystack/fleetbill/internal/instance/domain"
	"github.com/shopspring/decimal"
)

// HoursPerMonth is the flat monthly-to-hourly divisor. It is deliberately not
// calendar-accurate; changing it would alter historical billing amounts.
const HoursPerMonth = 730

// amountPlaces is the internal rounding precision for computed amounts.
// Display layers round further to 2.
const amountPlaces = 4

var (
	hoursPerMonth     = decimal.NewFromInt(HoursPerMonth)
	dailyBackupFactor = decimal.NewFromFloat(1.5)
)

// Pricing is the monthly-price snapshot an instance carries.
type Pricing struct {
	BaseMonthly   decimal.Decimal
	MarkupMonthly decimal.Decimal
	BackupMonthly decimal.Decimal
	BackupMarkup  decimal.Decimal
}

// PricingFor extracts the pricing snapshot from an instance row.
func PricingFor(inst instancedomain.Instance) Pricing {
	return Pricing{
		BaseMonthly:   inst.BaseMonthlyPrice,
		MarkupMonthly: inst.MarkupMonthlyPrice,
		BackupMonthly: inst.BackupMonthlyPrice,
		BackupMarkup:  inst.BackupMarkupPrice,
	}
}

// Cost is the breakdown for a charge of elapsedHours whole hours.
type Cost struct {
	HourlyRate   decimal.Decimal
	BaseAmount   decimal.Decimal
	BackupAmount decimal.Decimal
	TotalAmount  decimal.Decimal
}

// BaseHourlyRate is (base + markup) / 730.
func BaseHourlyRate(p Pricing) decimal.Decimal {
	return p.BaseMonthly.Add(p.MarkupMonthly).Div(hoursPerMonth)
}

// BackupHourlyRate applies the backup surcharge: daily backups cost 1.5x the
// monthly backup price, weekly backups cost it flat, none costs nothing.
func BackupHourlyRate(p Pricing, backup instancedomain.BackupConfig) decimal.Decimal {
	monthly := p.BackupMonthly.Add(p.BackupMarkup)
	switch backup {
	case instancedomain.BackupDaily:
		monthly = monthly.Mul(dailyBackupFactor)
	case instancedomain.BackupWeekly:
		// flat
	default:
		return decimal.Zero
	}
	return monthly.Div(hoursPerMonth)
}

// Compute returns the cost of charging elapsedHours whole hours. Negative
// inputs are programmer error and panic.
func Compute(p Pricing, backup instancedomain.BackupConfig, elapsedHours int64) Cost {
	if elapsedHours < 0 {
		panic(fmt.Sprintf("rating: negative elapsed hours %d", elapsedHours))
	}
	if p.BaseMonthly.IsNegative() || p.MarkupMonthly.IsNegative() || p.BackupMonthly.IsNegative() || p.BackupMarkup.IsNegative() {
		panic("rating: negative price input")
	}

	hours := decimal.NewFromInt(elapsedHours)
	baseHourly := BaseHourlyRate(p)
	backupHourly := BackupHourlyRate(p, backup)

	base := baseHourly.Mul(hours).Round(amountPlaces)
	backupAmount := backupHourly.Mul(hours).Round(amountPlaces)
	total := baseHourly.Add(backupHourly).Mul(hours).Round(amountPlaces)

	return Cost{
		HourlyRate:   baseHourly.Add(backupHourly).Round(amountPlaces),
		BaseAmount:   base,
		BackupAmount: backupAmount,
		TotalAmount:  total,
	}
}
