// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents one quote in the price table.
type PriceRow struct {
	Pair      string
	Exchange  string
	Price     decimal.Decimal
	Liquidity decimal.Decimal
}

// PricesComponent renders the quotes of the latest scan.
type PricesComponent struct {
	rows      []PriceRow
	nativeUSD decimal.Decimal
	gasUSD    decimal.Decimal
	gasFailed bool
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{}
}

// Update updates the price data.
func (p *PricesComponent) Update(rows []PriceRow) {
	p.rows = rows
}

// SetCosts sets the native token rate and gas estimate used by the scan.
func (p *PricesComponent) SetCosts(nativeUSD, gasUSD decimal.Decimal, gasFailed bool) {
	p.nativeUSD = nativeUSD
	p.gasUSD = gasUSD
	p.gasFailed = gasFailed
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("PRICES"))
	sb.WriteString("\n\n")

	if len(p.rows) == 0 {
		sb.WriteString("Waiting for price data...")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-10s  %-12s  %14s  %14s\n", "Pair", "Exchange", "Price", "Liquidity"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 56)) + "\n")

	for _, row := range p.rows {
		liq := dimStyle.Render(fmt.Sprintf("%14s", "n/a"))
		if row.Liquidity.IsPositive() {
			liq = fmt.Sprintf("%14s", "$"+row.Liquidity.StringFixed(0))
		}
		sb.WriteString(fmt.Sprintf("  %-10s  %-12s  %14s  %s\n",
			row.Pair,
			row.Exchange,
			"$"+row.Price.StringFixed(2),
			liq,
		))
	}

	sb.WriteString("\n")
	gas := "$" + p.gasUSD.StringFixed(2)
	if p.gasFailed {
		gas = warnStyle.Render(gas + " (fallback)")
	}
	sb.WriteString(fmt.Sprintf("  Native: %s   Gas: %s\n",
		dimStyle.Render("$"+p.nativeUSD.StringFixed(2)), gas))

	return sb.String()
}
