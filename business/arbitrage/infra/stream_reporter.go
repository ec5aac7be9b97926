package infra

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/internal/logger"
)

// Ensure StreamReporter implements Reporter.
var _ app.Reporter = (*StreamReporter)(nil)

// EventScan is the stream event type for scan reports.
const EventScan = "scan"

// Broadcaster pushes a JSON value to every connected observer.
type Broadcaster interface {
	Broadcast(ctx context.Context, v any) error
}

// Event is the envelope written to stream clients.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ScanEvent is the stream payload for one scan.
type ScanEvent struct {
	Seq           uint64               `json:"seq"`
	At            time.Time            `json:"at"`
	GasUSD        decimal.Decimal      `json:"gasUsd"`
	NativeUSD     decimal.Decimal      `json:"nativeUsd"`
	Swept         []string             `json:"swept"`
	Opportunities []domain.Opportunity `json:"opportunities"`
	Stats         domain.Stats         `json:"stats"`
}

// StreamReporter broadcasts each scan's opportunity set and stats.
type StreamReporter struct {
	hub    Broadcaster
	logger logger.LoggerInterface
}

// NewStreamReporter creates a StreamReporter over hub.
func NewStreamReporter(hub Broadcaster, log logger.LoggerInterface) *StreamReporter {
	return &StreamReporter{hub: hub, logger: log}
}

// Start implements Reporter.
func (r *StreamReporter) Start(ctx context.Context) error {
	return nil
}

// Report broadcasts the scan. Broadcast failures are logged only.
func (r *StreamReporter) Report(ctx context.Context, rep domain.ScanReport) {
	swept := rep.Swept
	if swept == nil {
		swept = []string{}
	}
	ev := Event{Type: EventScan, Data: ScanEvent{
		Seq:           rep.Seq,
		At:            rep.StartedAt,
		GasUSD:        rep.GasUSD,
		NativeUSD:     rep.NativeUSD,
		Swept:         swept,
		Opportunities: rep.Opportunities,
		Stats:         rep.Stats,
	}}
	if err := r.hub.Broadcast(ctx, ev); err != nil {
		r.logger.Debug(ctx, "stream broadcast skipped", "error", err)
	}
}

// Stop implements Reporter.
func (r *StreamReporter) Stop() error {
	return nil
}
