// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// ActorRow is one auto-trader line.
type ActorRow struct {
	ActorID     string
	Status      string
	Halted      bool
	StopReason  string
	DailyProfit decimal.Decimal
	DailyLoss   decimal.Decimal
	TotalTrades int
	Successful  int
	InFlight    int
}

// ActorsComponent renders auto-trader status.
type ActorsComponent struct {
	actors []ActorRow
}

// NewActorsComponent creates a new actors component.
func NewActorsComponent() *ActorsComponent {
	return &ActorsComponent{}
}

// Update replaces the actor rows.
func (a *ActorsComponent) Update(rows []ActorRow) {
	a.actors = rows
}

// View renders the actors component.
func (a *ActorsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("AUTO-TRADERS"))
	sb.WriteString("\n\n")

	if len(a.actors) == 0 {
		sb.WriteString(dimStyle.Render("  No actors"))
		return sb.String()
	}

	for _, actor := range a.actors {
		status := "● " + actor.Status
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
		switch {
		case actor.Halted:
			status = "■ HALTED"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
		case actor.Status != "RUNNING":
			status = "○ " + actor.Status
			style = dimStyle
		}

		line := fmt.Sprintf("├─ %s: %s  day +$%s / -$%s  trades %d/%d",
			actor.ActorID,
			style.Render(status),
			actor.DailyProfit.StringFixed(2),
			actor.DailyLoss.StringFixed(2),
			actor.Successful,
			actor.TotalTrades,
		)
		if actor.InFlight > 0 {
			line += fmt.Sprintf("  in flight %d", actor.InFlight)
		}
		if actor.StopReason != "" {
			line += dimStyle.Render(" (" + actor.StopReason + ")")
		}
		sb.WriteString(line + "\n")
	}

	return sb.String()
}
