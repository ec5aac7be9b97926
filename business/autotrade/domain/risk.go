package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the actor's run state.
type Status string

const (
	StatusStopped Status = "STOPPED"
	StatusRunning Status = "RUNNING"
)

// StopReason explains the last transition to STOPPED.
type StopReason string

const (
	StopNone         StopReason = ""
	StopManual       StopReason = "manual"
	StopProfitTarget StopReason = "profit_target"
	StopLossLimit    StopReason = "loss_limit"
)

// RiskState is one actor's counters. It is owned by that actor's trader.
type RiskState struct {
	Status           Status          `json:"status"`
	StopReason       StopReason      `json:"stopReason,omitempty"`
	IsHalted         bool            `json:"isHalted"`
	DailyProfit      decimal.Decimal `json:"dailyProfit"`
	DailyLoss        decimal.Decimal `json:"dailyLoss"`
	TotalProfit      decimal.Decimal `json:"totalProfit"`
	TotalTrades      int             `json:"totalTrades"`
	SuccessfulTrades int             `json:"successfulTrades"`
	ActiveTradeCount int             `json:"activeTradeCount"`
	CurrentStreak    int             `json:"currentStreak"`
	LastTradeAt      time.Time       `json:"lastTradeAt,omitzero"`
}

// RecordSuccess folds a completed trade into the counters.
func (r *RiskState) RecordSuccess(profit decimal.Decimal, at time.Time) {
	r.TotalTrades++
	r.SuccessfulTrades++
	r.TotalProfit = r.TotalProfit.Add(profit)
	r.DailyProfit = r.DailyProfit.Add(profit)
	r.CurrentStreak++
	r.LastTradeAt = at
}

// RecordFailure folds a failed trade into the counters.
func (r *RiskState) RecordFailure(loss decimal.Decimal, at time.Time) {
	r.TotalTrades++
	r.DailyLoss = r.DailyLoss.Add(loss)
	r.CurrentStreak = 0
	r.LastTradeAt = at
}

// LossLimitReached reports whether the daily loss has hit limit.
func (r *RiskState) LossLimitReached(limit decimal.Decimal) bool {
	return r.DailyLoss.GreaterThanOrEqual(limit)
}

// Halt stops the actor until an explicit restart.
func (r *RiskState) Halt() {
	r.Status = StatusStopped
	r.StopReason = StopLossLimit
	r.IsHalted = true
}

// ResetDaily zeroes the daily counters. A halt survives the reset.
func (r *RiskState) ResetDaily() {
	r.DailyProfit = decimal.Zero
	r.DailyLoss = decimal.Zero
}

// SuccessRate returns successful/total, zero before the first trade.
func (r RiskState) SuccessRate() decimal.Decimal {
	if r.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(r.SuccessfulTrades)).Div(decimal.NewFromInt(int64(r.TotalTrades)))
}

// Snapshot is a point-in-time copy of an actor.
type Snapshot struct {
	ActorID  string    `json:"actorId"`
	Settings Settings  `json:"settings"`
	Risk     RiskState `json:"risk"`
}
