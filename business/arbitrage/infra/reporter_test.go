package infra

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/internal/logger"
	"github.com/fd1az/flasharb/pkg/ui"
)

func sampleReport() domain.ScanReport {
	return domain.ScanReport{
		Seq:       7,
		StartedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		GasUSD:    decimal.NewFromInt(5),
		NativeUSD: decimal.NewFromInt(3015),
		Detected:  1,
		Opportunities: []domain.Opportunity{{
			ID: "opp-1",
			Draft: domain.Draft{
				Key:       domain.Key{PairKey: "WETH/USDC", BuyExchange: "uniswap_v2", SellExchange: "sushiswap"},
				BuyPrice:  decimal.NewFromInt(3000),
				SellPrice: decimal.NewFromInt(3030),
				NetProfit: decimal.RequireFromString("18.69"),
			},
			IsActive: true,
			IsLocked: true,
		}},
		Stats: domain.Stats{Total: 1, Active: 1, Locked: 1},
	}
}

func TestConsoleReporter_Report(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterWriter(&buf)

	r.Report(context.Background(), sampleReport())

	out := buf.String()
	for _, want := range []string{"scan #7", "uniswap_v2", "sushiswap", "18.69", "3030.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleReporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterWriter(&buf)

	r.Report(context.Background(), domain.ScanReport{Seq: 1, GasFailed: true})

	if !strings.Contains(buf.String(), "no opportunities") || !strings.Contains(buf.String(), "fallback") {
		t.Errorf("output = %s", buf.String())
	}
}

type recordingSender struct{ msgs []tea.Msg }

func (s *recordingSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func TestTUIReporter_SendsScan(t *testing.T) {
	s := &recordingSender{}
	r := NewTUIReporter(s)

	r.Report(context.Background(), sampleReport())

	if len(s.msgs) != 1 {
		t.Fatalf("msgs = %d", len(s.msgs))
	}
	msg, ok := s.msgs[0].(ui.ScanMsg)
	if !ok || msg.Report.Seq != 7 {
		t.Errorf("msg = %#v", s.msgs[0])
	}
}

type recordingHub struct{ events []any }

func (h *recordingHub) Broadcast(_ context.Context, v any) error {
	h.events = append(h.events, v)
	return nil
}

func TestStreamReporter_BroadcastsScan(t *testing.T) {
	hub := &recordingHub{}
	r := NewStreamReporter(hub, logger.Discard())

	r.Report(context.Background(), sampleReport())

	if len(hub.events) != 1 {
		t.Fatalf("events = %d", len(hub.events))
	}
	ev := hub.events[0].(Event)
	data := ev.Data.(ScanEvent)
	if ev.Type != EventScan || data.Seq != 7 || len(data.Opportunities) != 1 || data.Swept == nil {
		t.Errorf("event = %+v", ev)
	}
}
