// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Stats holds statistics for display.
type Stats struct {
	Scans          uint64
	Quotes         int
	Active         int
	Locked         int
	Swept          int
	BestNetProfit  decimal.Decimal
	TotalNetProfit decimal.Decimal
	LastDuration   time.Duration
	Errors         int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Scans: %s  │  Quotes: %s  │  Active: %s  │  Locked: %s  │  Swept: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Scans)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Quotes)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Active)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Locked)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Swept)),
		) +
		fmt.Sprintf("Best: %s  │  Total net: %s  │  Scan time: %s  │  Errors: %s",
			valueStyle.Render("$"+s.stats.BestNetProfit.StringFixed(2)),
			valueStyle.Render("$"+s.stats.TotalNetProfit.StringFixed(2)),
			valueStyle.Render(s.stats.LastDuration.Round(time.Millisecond).String()),
			errorsDisplay,
		)
}
