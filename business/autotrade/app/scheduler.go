package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fd1az/flasharb/business/autotrade/domain"
	"github.com/fd1az/flasharb/internal/apperror"
	"github.com/fd1az/flasharb/internal/logger"
)

// handle is one registered actor. The loop fields are nil while stopped.
type handle struct {
	trader *AutoTrader
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *handle) looping() bool {
	if h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Scheduler owns every actor's trader and loop. Only Start and Stop add or
// change handles.
type Scheduler struct {
	picker   OpportunityPicker
	exec     TradeExecutor
	defaults domain.Settings
	location *time.Location
	logger   logger.LoggerInterface
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	actors map[string]*handle
}

// NewScheduler creates a Scheduler. Daily counters reset at midnight in loc.
func NewScheduler(
	picker OpportunityPicker,
	exec TradeExecutor,
	defaults domain.Settings,
	loc *time.Location,
	log logger.LoggerInterface,
) (*Scheduler, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default settings: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		picker:   picker,
		exec:     exec,
		defaults: defaults,
		location: loc,
		logger:   log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		actors:   make(map[string]*handle),
	}, nil
}

func normalizeActor(actorID string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(actorID))
	if id == "" {
		return "", apperror.New(apperror.CodeActorIDRequired)
	}
	return id, nil
}

// Start creates or restarts the actor's trader and clears any halt. Nil
// settings keep the actor's current settings, or the defaults for a new actor.
func (s *Scheduler) Start(actorID string, settings *domain.Settings) (domain.Snapshot, error) {
	id, err := normalizeActor(actorID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if settings != nil {
		if err := settings.Validate(); err != nil {
			return domain.Snapshot{}, err
		}
	}

	h, ok := s.lockForStart(id)
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return domain.Snapshot{}, apperror.New(apperror.CodeInvalidState, apperror.WithContext("scheduler is shut down"))
	}

	if !ok {
		initial := s.defaults
		if settings != nil {
			initial = *settings
		}
		trader, err := NewAutoTrader(id, initial, s.picker, s.exec, s.logger)
		if err != nil {
			return domain.Snapshot{}, err
		}
		h = &handle{trader: trader}
		s.actors[id] = h
	} else if settings != nil {
		if err := h.trader.UpdateSettings(*settings); err != nil {
			return domain.Snapshot{}, err
		}
	}

	h.trader.Start()
	if h.cancel == nil || !h.looping() {
		if h.cancel != nil {
			h.cancel()
		}
		ctx, cancel := context.WithCancel(s.ctx)
		h.cancel, h.done = cancel, make(chan struct{})
		go s.loop(ctx, h.trader, h.done)
	}

	snap := h.trader.Snapshot()
	s.logger.Info(s.ctx, "auto-trading started",
		"actor", id,
		"min_profit", snap.Settings.MinProfitThreshold.String(),
		"loss_limit", snap.Settings.LossLimit.String(),
		"cooldown", snap.Settings.Cooldown.String(),
	)
	return snap, nil
}

// lockForStart acquires s.mu once the actor has no stopped loop still
// winding down, so at most one loop runs per actor. It returns with s.mu held.
func (s *Scheduler) lockForStart(id string) (*handle, bool) {
	for {
		s.mu.Lock()
		h, ok := s.actors[id]
		if !ok || h.cancel != nil || !h.looping() {
			return h, ok
		}
		done := h.done
		s.mu.Unlock()
		<-done
	}
}

// Stop stops the actor's loop. In-flight trades are not cancelled.
func (s *Scheduler) Stop(actorID string) (domain.Snapshot, error) {
	id, err := normalizeActor(actorID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.actors[id]
	if !ok {
		return domain.Snapshot{}, apperror.New(apperror.CodeActorNotFound, apperror.WithContext(id))
	}
	h.trader.Stop(domain.StopManual)
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}

	s.logger.Info(s.ctx, "auto-trading stopped", "actor", id)
	return h.trader.Snapshot(), nil
}

// Defaults returns the settings new actors start with.
func (s *Scheduler) Defaults() domain.Settings {
	d := s.defaults
	d.AllowedExchanges = append([]string(nil), d.AllowedExchanges...)
	return d
}

// Status returns the actor's snapshot.
func (s *Scheduler) Status(actorID string) (domain.Snapshot, error) {
	h, err := s.lookup(actorID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return h.trader.Snapshot(), nil
}

// Statuses returns every actor's snapshot ordered by actor id.
func (s *Scheduler) Statuses() []domain.Snapshot {
	s.mu.Lock()
	traders := make([]*AutoTrader, 0, len(s.actors))
	for _, h := range s.actors {
		traders = append(traders, h.trader)
	}
	s.mu.Unlock()

	out := make([]domain.Snapshot, 0, len(traders))
	for _, t := range traders {
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActorID < out[j].ActorID })
	return out
}

// ResetRisk zeroes the actor's daily counters and clears a halt.
func (s *Scheduler) ResetRisk(actorID string) (domain.Snapshot, error) {
	h, err := s.lookup(actorID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	h.trader.ResetRisk()
	return h.trader.Snapshot(), nil
}

func (s *Scheduler) lookup(actorID string) (*handle, error) {
	id, err := normalizeActor(actorID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.actors[id]
	if !ok {
		return nil, apperror.New(apperror.CodeActorNotFound, apperror.WithContext(id))
	}
	return h, nil
}

// loop cycles until ctx is done or the trader stops itself.
func (s *Scheduler) loop(ctx context.Context, t *AutoTrader, done chan struct{}) {
	defer close(done)

	for {
		if s.safeCycle(ctx, t).Stopped() {
			return
		}

		timer := time.NewTimer(t.Settings().Cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) safeCycle(ctx context.Context, t *AutoTrader) (outcome CycleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "auto-trade cycle panicked", "actor", t.ActorID(), "panic", fmt.Sprint(r))
			outcome = OutcomeNoOpportunity
		}
	}()
	return t.Cycle(ctx)
}

// ResetDaily zeroes every actor's daily counters.
func (s *Scheduler) ResetDaily(ctx context.Context) {
	s.mu.Lock()
	traders := make([]*AutoTrader, 0, len(s.actors))
	for _, h := range s.actors {
		traders = append(traders, h.trader)
	}
	s.mu.Unlock()

	for _, t := range traders {
		t.ResetDaily()
	}
	s.logger.Info(ctx, "daily risk counters reset", "actors", len(traders))
}

// Run resets daily counters at each local midnight until ctx is done, then
// shuts every actor down.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info(ctx, "auto-trade scheduler started", "location", s.location.String())

	for {
		next := NextDailyBoundary(s.now(), s.location)
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			err := s.Shutdown(shutdownCtx)
			cancel()
			return err
		case <-timer.C:
			s.ResetDaily(ctx)
		}
	}
}

// Shutdown stops every loop and waits for loops and in-flight trades.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	handles := make([]*handle, 0, len(s.actors))
	for _, h := range s.actors {
		h.trader.Stop(domain.StopManual)
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if h.done != nil {
			select {
			case <-h.done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := h.trader.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("actor %s: %w", h.trader.ActorID(), err))
		}
	}
	return errors.Join(errs...)
}

// NextDailyBoundary returns the first local midnight in loc strictly after now.
func NextDailyBoundary(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
