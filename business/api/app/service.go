// Package app is the facade the HTTP layer calls into.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	autotradeDomain "github.com/fd1az/flasharb/business/autotrade/domain"
	executionDomain "github.com/fd1az/flasharb/business/execution/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/config"
	"github.com/fd1az/flasharb/internal/logger"
)

const defaultTradeLimit = 50

// OpportunityReader is the read side of the opportunity store.
type OpportunityReader interface {
	Get(id string) (arbitrageDomain.Opportunity, bool)
	Query(filter arbitrageDomain.Filter) []arbitrageDomain.Opportunity
	Best(filter arbitrageDomain.Filter) (arbitrageDomain.Opportunity, bool)
}

// TradeExecutor runs a manual trade, acquiring the lock itself.
type TradeExecutor interface {
	Execute(ctx context.Context, req executionDomain.TradeRequest) executionDomain.TradeResult
}

// AutoTradeControl manages actor loops.
type AutoTradeControl interface {
	Start(actorID string, settings *autotradeDomain.Settings) (autotradeDomain.Snapshot, error)
	Stop(actorID string) (autotradeDomain.Snapshot, error)
	Status(actorID string) (autotradeDomain.Snapshot, error)
	Statuses() []autotradeDomain.Snapshot
	ResetRisk(actorID string) (autotradeDomain.Snapshot, error)
	Defaults() autotradeDomain.Settings
}

// TradeHistory lists audit records.
type TradeHistory interface {
	ListTrades(ctx context.Context, actorID string, limit int) ([]executionDomain.TradeRecord, error)
}

// TradeCommand is a manual trade request.
type TradeCommand struct {
	OpportunityID      string          `json:"opportunityId"`
	UseFlashloan       bool            `json:"useFlashloan"`
	TradeAmount        decimal.Decimal `json:"tradeAmount"`
	MaxSlippagePct     decimal.Decimal `json:"maxSlippagePct"`
	FlashloanStrategy  string          `json:"flashloanStrategy"`
	MinProfitThreshold decimal.Decimal `json:"minProfitThreshold"`
}

// SettingsPatch overrides selected auto-trade settings. Nil fields keep
// the actor's current value.
type SettingsPatch struct {
	MinProfitThreshold  *decimal.Decimal `json:"minProfitThreshold"`
	ProfitTarget        *decimal.Decimal `json:"profitTarget"`
	LossLimit           *decimal.Decimal `json:"lossLimit"`
	MaxConcurrentTrades *int             `json:"maxConcurrentTrades"`
	Cooldown            *string          `json:"cooldown"` // Go duration, e.g. "30s"
	AllowedExchanges    []string         `json:"allowedExchanges"`
	TradeAmount         *decimal.Decimal `json:"tradeAmount"`
	MaxSlippagePct      *decimal.Decimal `json:"maxSlippagePct"`
	UseFlashloan        *bool            `json:"useFlashloan"`
	FlashloanStrategy   *string          `json:"flashloanStrategy"`
	FailureLossEstimate *decimal.Decimal `json:"failureLossEstimate"`
}

// Apply returns base with the patch applied.
func (p SettingsPatch) Apply(base autotradeDomain.Settings) (autotradeDomain.Settings, error) {
	s := base
	if p.MinProfitThreshold != nil {
		s.MinProfitThreshold = *p.MinProfitThreshold
	}
	if p.ProfitTarget != nil {
		s.ProfitTarget = *p.ProfitTarget
	}
	if p.LossLimit != nil {
		s.LossLimit = *p.LossLimit
	}
	if p.MaxConcurrentTrades != nil {
		s.MaxConcurrentTrades = *p.MaxConcurrentTrades
	}
	if p.Cooldown != nil {
		d, err := time.ParseDuration(*p.Cooldown)
		if err != nil {
			return s, apperror.New(apperror.CodeInvalidSettings, apperror.WithCause(err), apperror.WithContext("cooldown"))
		}
		s.Cooldown = d
	}
	if p.AllowedExchanges != nil {
		s.AllowedExchanges = p.AllowedExchanges
	}
	if p.TradeAmount != nil {
		s.TradeAmount = *p.TradeAmount
	}
	if p.MaxSlippagePct != nil {
		s.MaxSlippagePct = *p.MaxSlippagePct
	}
	if p.UseFlashloan != nil {
		s.UseFlashloan = *p.UseFlashloan
	}
	if p.FlashloanStrategy != nil {
		s.FlashloanStrategy = executionDomain.Strategy(*p.FlashloanStrategy)
	}
	if p.FailureLossEstimate != nil {
		s.FailureLossEstimate = *p.FailureLossEstimate
	}
	return s, s.Validate()
}

// Service exposes the coordinator's operations to callers outside the process.
type Service struct {
	store     OpportunityReader
	executor  TradeExecutor
	autotrade AutoTradeControl
	trades    TradeHistory
	policy    string
	logger    logger.LoggerInterface
}

// NewService creates a Service. policy selects what happens when a trade
// names an opportunity that is gone.
func NewService(
	store OpportunityReader,
	executor TradeExecutor,
	autotrade AutoTradeControl,
	trades TradeHistory,
	policy string,
	log logger.LoggerInterface,
) (*Service, error) {
	switch policy {
	case config.PolicyStrictID, config.PolicyFallbackToBest, config.PolicyReject:
	case "":
		policy = config.PolicyStrictID
	default:
		return nil, fmt.Errorf("unknown fallback policy %q", policy)
	}

	return &Service{
		store:     store,
		executor:  executor,
		autotrade: autotrade,
		trades:    trades,
		policy:    policy,
		logger:    log,
	}, nil
}

// ListOpportunities returns matches sorted by net profit, best first. It
// never fails on an empty result.
func (s *Service) ListOpportunities(filter arbitrageDomain.Filter) []arbitrageDomain.Opportunity {
	return s.store.Query(filter)
}

// ExecuteTrade runs a manual trade for actorID. Failures that happen before
// anything reaches the chain are returned as errors; later failures come
// back as an unsuccessful result.
func (s *Service) ExecuteTrade(ctx context.Context, actorID string, cmd TradeCommand) (executionDomain.TradeResult, error) {
	actorID = normalizeActor(actorID)
	if actorID == "" {
		return executionDomain.TradeResult{}, apperror.New(apperror.CodeActorIDRequired)
	}
	strategy, err := executionDomain.ParseStrategy(cmd.FlashloanStrategy)
	if err != nil {
		return executionDomain.TradeResult{}, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err), apperror.WithContext("flashloanStrategy"))
	}

	oppID, err := s.resolveOpportunity(ctx, strings.TrimSpace(cmd.OpportunityID))
	if err != nil {
		return executionDomain.TradeResult{}, err
	}

	result := s.executor.Execute(ctx, executionDomain.TradeRequest{
		ActorID:            actorID,
		OpportunityID:      oppID,
		TradeAmount:        cmd.TradeAmount,
		MaxSlippagePct:     cmd.MaxSlippagePct,
		UseFlashloan:       cmd.UseFlashloan,
		FlashloanStrategy:  strategy,
		MinProfitThreshold: cmd.MinProfitThreshold,
	})
	if !result.Success && result.ErrorKind.IsPrecondition() {
		return result, result.Err()
	}
	return result, nil
}

// resolveOpportunity applies the fallback policy to a requested id.
func (s *Service) resolveOpportunity(ctx context.Context, id string) (string, error) {
	if id != "" {
		if opp, ok := s.store.Get(id); ok && opp.IsActive {
			return id, nil
		}
	}

	switch s.policy {
	case config.PolicyReject:
		return "", apperror.New(apperror.CodeOpportunityNotFound, apperror.WithContext(id))
	case config.PolicyFallbackToBest:
		best, ok := s.store.Best(arbitrageDomain.Filter{ActiveOnly: true})
		if !ok {
			return "", apperror.New(apperror.CodeNoOpportunity)
		}
		if id != "" {
			s.logger.Warn(ctx, "requested opportunity unavailable, using best",
				"requested", id,
				"substituted", best.ID,
				"net_profit", best.NetProfit.StringFixed(2),
			)
		}
		return best.ID, nil
	default:
		if id == "" {
			return "", apperror.New(apperror.CodeRequiredField, apperror.WithContext("opportunityId"))
		}
		// The executor reports the stale id as a validation failure.
		return id, nil
	}
}

// StartAutoTrade starts or restarts actorID's loop with the patch applied
// over its current settings.
func (s *Service) StartAutoTrade(actorID string, patch *SettingsPatch) (autotradeDomain.Snapshot, error) {
	actorID = normalizeActor(actorID)
	if actorID == "" {
		return autotradeDomain.Snapshot{}, apperror.New(apperror.CodeActorIDRequired)
	}
	if patch == nil {
		return s.autotrade.Start(actorID, nil)
	}

	base := s.autotrade.Defaults()
	if snap, err := s.autotrade.Status(actorID); err == nil {
		base = snap.Settings
	}
	settings, err := patch.Apply(base)
	if err != nil {
		return autotradeDomain.Snapshot{}, err
	}
	return s.autotrade.Start(actorID, &settings)
}

// StopAutoTrade stops actorID's loop.
func (s *Service) StopAutoTrade(actorID string) (autotradeDomain.Snapshot, error) {
	return s.autotrade.Stop(actorID)
}

// AutoTradeStatus returns actorID's snapshot.
func (s *Service) AutoTradeStatus(actorID string) (autotradeDomain.Snapshot, error) {
	return s.autotrade.Status(actorID)
}

// AutoTradeStatuses returns every actor's snapshot.
func (s *Service) AutoTradeStatuses() []autotradeDomain.Snapshot {
	return s.autotrade.Statuses()
}

// ResetRisk clears actorID's daily counters and halt.
func (s *Service) ResetRisk(actorID string) (autotradeDomain.Snapshot, error) {
	return s.autotrade.ResetRisk(actorID)
}

// Trades returns the newest trade records, all actors when actorID is empty.
func (s *Service) Trades(ctx context.Context, actorID string, limit int) ([]executionDomain.TradeRecord, error) {
	if limit <= 0 {
		limit = defaultTradeLimit
	}
	return s.trades.ListTrades(ctx, normalizeActor(actorID), limit)
}

func normalizeActor(actorID string) string {
	return strings.ToLower(strings.TrimSpace(actorID))
}
