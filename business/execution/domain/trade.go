// Package domain contains the trade execution model.
package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/internal/apperror"
)

// State is the lifecycle of one trade attempt.
type State string

const (
	StatePending    State = "PENDING"
	StateValidating State = "VALIDATING"
	StateExecuting  State = "EXECUTING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrorKind classifies a failed attempt.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorValidationFailed    ErrorKind = "ValidationFailed"
	ErrorLockContention      ErrorKind = "LockContention"
	ErrorSigningKeyMissing   ErrorKind = "SigningKeyMissing"
	ErrorInsufficientFunds   ErrorKind = "InsufficientFunds"
	ErrorSubmissionFailed    ErrorKind = "SubmissionFailed"
	ErrorExecutionReverted   ErrorKind = "ExecutionReverted"
	ErrorConfirmationTimeout ErrorKind = "ConfirmationTimeout"
)

// IsPrecondition reports whether the attempt failed before anything was sent on chain.
func (k ErrorKind) IsPrecondition() bool {
	switch k {
	case ErrorValidationFailed, ErrorLockContention, ErrorSigningKeyMissing:
		return true
	}
	return false
}

// Code maps the kind to its application error code.
func (k ErrorKind) Code() apperror.Code {
	switch k {
	case ErrorValidationFailed:
		return apperror.CodeValidationFailed
	case ErrorLockContention:
		return apperror.CodeLockContention
	case ErrorSigningKeyMissing:
		return apperror.CodeSigningKeyMissing
	case ErrorInsufficientFunds:
		return apperror.CodeInsufficientFunds
	case ErrorSubmissionFailed:
		return apperror.CodeSubmissionFailed
	case ErrorExecutionReverted:
		return apperror.CodeExecutionReverted
	case ErrorConfirmationTimeout:
		return apperror.CodeConfirmationTimeout
	}
	return apperror.CodeUnknownError
}

// Strategy selects how a flashloan is sized.
type Strategy string

const (
	StrategyFixed      Strategy = "fixed"
	StrategyPercentage Strategy = "percentage"
	StrategyDynamic    Strategy = "dynamic"
)

var ErrUnknownStrategy = errors.New("execution: unknown flashloan strategy")

// ParseStrategy validates s. Empty means percentage.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyPercentage, nil
	case StrategyFixed, StrategyPercentage, StrategyDynamic:
		return Strategy(s), nil
	}
	return "", ErrUnknownStrategy
}

// TradeRequest asks for one opportunity to be executed on behalf of an actor.
type TradeRequest struct {
	ActorID           string          `json:"actorId"`
	OpportunityID     string          `json:"opportunityId"`
	TradeAmount       decimal.Decimal `json:"tradeAmount"`
	MaxSlippagePct    decimal.Decimal `json:"maxSlippagePct"`
	UseFlashloan      bool            `json:"useFlashloan"`
	FlashloanStrategy Strategy        `json:"flashloanStrategy"`
	// MinProfitThreshold scales the dynamic strategy; zero uses the executor default.
	MinProfitThreshold decimal.Decimal `json:"minProfitThreshold"`
}

// TradeResult is the outcome reported to the caller.
type TradeResult struct {
	AttemptID    string          `json:"attemptId"`
	Success      bool            `json:"success"`
	TxHash       string          `json:"txHash,omitempty"`
	ActualProfit decimal.Decimal `json:"actualProfit"`
	GasUsed      uint64          `json:"gasUsed"`
	ErrorKind    ErrorKind       `json:"errorKind,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// Err returns the failure as an application error, nil on success.
func (r TradeResult) Err() error {
	if r.Success {
		return nil
	}
	return apperror.New(r.ErrorKind.Code(), apperror.WithContext(r.Error))
}

// TradeRecord is the audit row written for every attempt.
type TradeRecord struct {
	AttemptID       string          `json:"attemptId"`
	ActorID         string          `json:"actorId"`
	OpportunityID   string          `json:"opportunityId"`
	PairKey         string          `json:"tokenPairKey"`
	BuyExchange     string          `json:"buyExchange"`
	SellExchange    string          `json:"sellExchange"`
	Amount          decimal.Decimal `json:"amount"`
	EstimatedProfit decimal.Decimal `json:"estimatedProfit"`
	UseFlashloan    bool            `json:"useFlashloan"`
	Strategy        Strategy        `json:"flashloanStrategy"`
	State           State           `json:"state"`
	Result          TradeResult     `json:"result"`
	StartedAt       time.Time       `json:"startedAt"`
	FinishedAt      time.Time       `json:"finishedAt"`
}
