// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/olekukonko/tablewriter"

	"github.com/fd1az/flasharb/business/arbitrage/app"
	"github.com/fd1az/flasharb/business/arbitrage/domain"
)

// Ensure ConsoleReporter implements Reporter.
var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterWriter(os.Stdout)
}

// NewConsoleReporterWriter creates a ConsoleReporter writing to w.
func NewConsoleReporterWriter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Arbitrage Coordinator Started")
	fmt.Fprintln(r.out, "=============================")
	return nil
}

// Report prints a one-line summary and the top opportunities.
func (r *ConsoleReporter) Report(ctx context.Context, rep domain.ScanReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	gas := "$" + rep.GasUSD.StringFixed(2)
	if rep.GasFailed {
		gas += " (fallback)"
	}
	fmt.Fprintf(r.out, "\n[%s] scan #%d  quotes:%d  detected:%d  swept:%d  active:%d  gas:%s  native:$%s  (%dms)\n",
		rep.StartedAt.Format("15:04:05"), rep.Seq, len(rep.Quotes), rep.Detected, len(rep.Swept),
		rep.Stats.Active, gas, rep.NativeUSD.StringFixed(2), rep.Duration.Milliseconds())

	if len(rep.Opportunities) == 0 {
		fmt.Fprintln(r.out, "  no opportunities above the profit threshold")
		return
	}

	table := tablewriter.NewWriter(r.out)
	table.Header("#", "Pair", "Buy", "Sell", "Buy $", "Sell $", "Diff %", "Gross", "Gas", "Net", "Liquidity", "Lock")
	for i, o := range rep.Opportunities {
		lock := ""
		if o.IsLocked {
			lock = "●"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			o.PairKey,
			o.BuyExchange,
			o.SellExchange,
			o.BuyPrice.StringFixed(2),
			o.SellPrice.StringFixed(2),
			o.PriceDiffPct.StringFixed(3),
			o.GrossProfit.StringFixed(2),
			o.GasCostEstimate.StringFixed(2),
			o.NetProfit.StringFixed(2),
			o.LiquidityEstimate.StringFixed(0),
			lock,
		)
	}
	table.Render()
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Arbitrage Coordinator Stopped")
	return nil
}
