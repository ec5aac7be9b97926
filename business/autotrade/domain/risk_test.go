package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/internal/apperror"
)

func TestRiskState_Counters(t *testing.T) {
	var r RiskState
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r.RecordSuccess(decimal.NewFromInt(20), now)
	r.RecordSuccess(decimal.NewFromInt(5), now)
	r.RecordFailure(decimal.NewFromInt(3), now)

	if r.TotalTrades != 3 || r.SuccessfulTrades != 2 || r.CurrentStreak != 0 {
		t.Errorf("counters = %+v", r)
	}
	if !r.DailyProfit.Equal(decimal.NewFromInt(25)) || !r.DailyLoss.Equal(decimal.NewFromInt(3)) {
		t.Errorf("daily = %s / %s", r.DailyProfit, r.DailyLoss)
	}
	if got := r.SuccessRate().StringFixed(4); got != "0.6667" {
		t.Errorf("SuccessRate = %s", got)
	}
}

func TestRiskState_ResetDailyKeepsHalt(t *testing.T) {
	r := RiskState{Status: StatusRunning, DailyLoss: decimal.NewFromInt(100), DailyProfit: decimal.NewFromInt(7)}
	r.Halt()
	r.ResetDaily()

	if !r.IsHalted || r.Status != StatusStopped || r.StopReason != StopLossLimit {
		t.Errorf("halt cleared by daily reset: %+v", r)
	}
	if !r.DailyLoss.IsZero() || !r.DailyProfit.IsZero() {
		t.Errorf("daily counters not reset: %+v", r)
	}
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr bool
	}{
		{"defaults", func(s *Settings) {}, false},
		{"zero_loss_limit", func(s *Settings) { s.LossLimit = decimal.Zero }, true},
		{"zero_concurrency", func(s *Settings) { s.MaxConcurrentTrades = 0 }, true},
		{"short_cooldown", func(s *Settings) { s.Cooldown = 10 * time.Millisecond }, true},
		{"bad_strategy", func(s *Settings) { s.FlashloanStrategy = "yolo" }, true},
		{"no_flashloan_no_amount", func(s *Settings) { s.UseFlashloan = false; s.TradeAmount = decimal.Zero }, true},
		{"slippage_over_100", func(s *Settings) { s.MaxSlippagePct = decimal.NewFromInt(150) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && apperror.GetCode(err) != apperror.CodeInvalidSettings {
				t.Errorf("code = %s", apperror.GetCode(err))
			}
		})
	}
}
