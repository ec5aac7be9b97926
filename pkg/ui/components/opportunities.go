// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	Pair      string
	Buy       string
	Sell      string
	SpreadPct decimal.Decimal
	NetProfit decimal.Decimal
	Liquidity decimal.Decimal
	Locked    bool
}

// OpportunitiesComponent renders the current opportunity set.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	offset  int
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{maxRows: maxRows}
}

// Set replaces the rows with the latest snapshot.
func (o *OpportunitiesComponent) Set(rows []OpportunityRow) {
	o.rows = rows
	if o.offset > len(rows)-1 {
		o.offset = max(len(rows)-1, 0)
	}
}

// Len returns the number of rows held.
func (o *OpportunitiesComponent) Len() int {
	return len(o.rows)
}

// ScrollUp moves the window one row up.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown moves the window one row down.
func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset+o.maxRows < len(o.rows) {
		o.offset++
	}
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lockedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (%d)", len(o.rows))))
	sb.WriteString("\n\n")

	if len(o.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No opportunities above threshold"))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-10s  %-12s  %-12s  %8s  %10s  %12s  %s\n",
		"Pair", "Buy", "Sell", "Spread", "Net", "Liquidity", ""))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 78)) + "\n")

	end := min(o.offset+o.maxRows, len(o.rows))
	for _, row := range o.rows[o.offset:end] {
		state := ""
		if row.Locked {
			state = lockedStyle.Render("LOCKED")
		}
		sb.WriteString(fmt.Sprintf("  %-10s  %-12s  %-12s  %8s  %s  %12s  %s\n",
			row.Pair,
			row.Buy,
			row.Sell,
			row.SpreadPct.StringFixed(2)+"%",
			profitStyle.Render(fmt.Sprintf("%10s", "$"+row.NetProfit.StringFixed(2))),
			"$"+row.Liquidity.StringFixed(0),
			state,
		))
	}

	if len(o.rows) > o.maxRows {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  rows %d-%d of %d", o.offset+1, end, len(o.rows))))
	}

	return sb.String()
}
