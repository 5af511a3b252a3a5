package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PassFailure describes one instance that could not be charged during a pass.
type PassFailure struct {
	InstanceID snowflake.ID `json:"instance_id"`
	Reason     string       `json:"reason"`
}

// PassResult summarizes one reconciliation pass over all due instances.
type PassResult struct {
	BilledCount int             `json:"billed_count"`
	FailedCount int             `json:"failed_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalHours  int64           `json:"total_hours"`
	Failures    []PassFailure   `json:"failures,omitempty"`
}

type Service interface {
	// RunPass reconciles every instance due for charging. Per-instance
	// failures are collected in the result; an error is returned only when
	// the pass could not run at all.
	RunPass(ctx context.Context) (PassResult, error)
}
