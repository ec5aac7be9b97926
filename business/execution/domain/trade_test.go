package domain

import (
	"errors"
	"testing"

	"github.com/fd1az/flasharb/internal/apperror"
)

func TestErrorKind_IsPrecondition(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{ErrorValidationFailed, true},
		{ErrorLockContention, true},
		{ErrorSigningKeyMissing, true},
		{ErrorInsufficientFunds, false},
		{ErrorSubmissionFailed, false},
		{ErrorExecutionReverted, false},
		{ErrorConfirmationTimeout, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.IsPrecondition(); got != tt.want {
				t.Errorf("IsPrecondition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTradeResult_Err(t *testing.T) {
	if err := (TradeResult{Success: true}).Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}

	err := TradeResult{ErrorKind: ErrorConfirmationTimeout, Error: "no receipt after 60s"}.Err()
	if !errors.Is(err, apperror.New(apperror.CodeConfirmationTimeout)) {
		t.Errorf("Err() = %v, want CONFIRMATION_TIMEOUT", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy(""); err != nil || s != StrategyPercentage {
		t.Errorf("ParseStrategy(\"\") = %s, %v", s, err)
	}
	if s, err := ParseStrategy("dynamic"); err != nil || s != StrategyDynamic {
		t.Errorf("ParseStrategy(dynamic) = %s, %v", s, err)
	}
	if _, err := ParseStrategy("martingale"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(martingale) err = %v", err)
	}
}
