package infra

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/pkg/ui"
)

// Ensure TUIReporter implements Reporter.
var _ app.Reporter = (*TUIReporter)(nil)

// Sender delivers messages to a running Bubble Tea program.
type Sender interface {
	Send(msg tea.Msg)
}

// TUIReporter implements Reporter for the Bubble Tea dashboard.
type TUIReporter struct {
	program Sender
}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter(program Sender) *TUIReporter {
	return &TUIReporter{program: program}
}

// Start announces that scanning has begun.
func (r *TUIReporter) Start(ctx context.Context) error {
	r.program.Send(ui.LogMsg{Level: "info", Message: "scanner started"})
	return nil
}

// Report sends the scan to the dashboard.
func (r *TUIReporter) Report(ctx context.Context, rep domain.ScanReport) {
	r.program.Send(ui.ScanMsg{Report: rep})
}

// Stop is a no-op; the program owns its own lifecycle.
func (r *TUIReporter) Stop() error {
	return nil
}
