// Package ui provides the Bubble Tea TUI for the coordinator.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	arbitrageDomain "github.com/fd1az/flasharb/business/arbitrage/domain"
	"github.com/fd1az/flasharb/pkg/ui/components"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	// Components
	prices        *components.PricesComponent
	opportunities *components.OpportunitiesComponent
	stats         *components.StatsComponent
	actors        *components.ActorsComponent
	help          help.Model
	keys          KeyMap

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	quitting   bool
	paused     bool // freeze the dashboard, messages are still counted
	width      int
	height     int
	lastScan   *arbitrageDomain.ScanReport
	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	errorCount int64
	logs       []string // Recent log messages
	scanCount  uint64
	halted     int // actors stopped by the loss limit
}

// New creates a new TUI model.
func New() Model {
	return Model{
		prices:        components.NewPricesComponent(),
		opportunities: components.NewOpportunitiesComponent(10),
		stats:         components.NewStatsComponent(),
		actors:        components.NewActorsComponent(),
		help:          help.New(),
		keys:          DefaultKeyMap(),
		phase:         PhaseWelcome,
		welcomeStart:  time.Now(),
		logs:          make([]string, 0, 5),
		errors:        make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Always allow quit
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to the dashboard
		if m.phase == PhaseWelcome {
			m.phase = PhaseDashboard
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.errors = make([]ErrorEntry, 0, 3)
		case key.Matches(msg, m.keys.Up):
			m.opportunities.ScrollUp()
		case key.Matches(msg, m.keys.Down):
			m.opportunities.ScrollDown()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseDashboard
		}
		return m, tickCmd()

	case ScanMsg:
		m.scanCount++
		if m.paused {
			return m, nil
		}
		m.applyScan(msg.Report)

	case ActorsMsg:
		if m.paused {
			return m, nil
		}
		rows := make([]components.ActorRow, 0, len(msg.Actors))
		m.halted = 0
		for _, a := range msg.Actors {
			rows = append(rows, components.ActorRow{
				ActorID:     a.ActorID,
				Status:      string(a.Risk.Status),
				Halted:      a.Risk.IsHalted,
				StopReason:  string(a.Risk.StopReason),
				DailyProfit: a.Risk.DailyProfit,
				DailyLoss:   a.Risk.DailyLoss,
				TotalTrades: a.Risk.TotalTrades,
				Successful:  a.Risk.SuccessfulTrades,
				InFlight:    a.Risk.ActiveTradeCount,
			})
			if a.Risk.IsHalted {
				m.halted++
			}
		}
		m.actors.Update(rows)
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.errorCount++
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m *Model) applyScan(rep arbitrageDomain.ScanReport) {
	m.lastScan = &rep
	m.lastUpdate = time.Now()

	prices := make([]components.PriceRow, 0, len(rep.Quotes))
	for _, q := range rep.Quotes {
		prices = append(prices, components.PriceRow{
			Pair:      q.PairKey,
			Exchange:  q.ExchangeID,
			Price:     q.Price,
			Liquidity: q.Liquidity,
		})
	}
	m.prices.Update(prices)
	m.prices.SetCosts(rep.NativeUSD, rep.GasUSD, rep.GasFailed)

	opps := make([]components.OpportunityRow, 0, len(rep.Opportunities))
	for _, o := range rep.Opportunities {
		opps = append(opps, components.OpportunityRow{
			Pair:      o.PairKey,
			Buy:       o.BuyExchange,
			Sell:      o.SellExchange,
			SpreadPct: o.PriceDiffPct,
			NetProfit: o.NetProfit,
			Liquidity: o.LiquidityEstimate,
			Locked:    o.IsLocked,
		})
	}
	m.opportunities.Set(opps)

	m.stats.Update(components.Stats{
		Scans:          m.scanCount,
		Quotes:         len(rep.Quotes),
		Active:         rep.Stats.Active,
		Locked:         rep.Stats.Locked,
		Swept:          len(rep.Swept),
		BestNetProfit:  rep.Stats.BestNetProfit,
		TotalNetProfit: rep.Stats.TotalNetProfit,
		LastDuration:   rep.Duration,
		Errors:         m.errorCount,
	})
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}
	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" ⚡ Flashloan Arbitrage Coordinator "))
	b.WriteString("\n\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	leftCol := m.prices.View() + "\n\n" + m.actors.View()
	rightCol := m.opportunities.View()

	// Side by side if enough width
	if m.width > 120 {
		left := BoxStyle.Width(m.width/2 - 2).Render(leftCol)
		right := BoxStyle.Width(m.width/2 - 2).Render(rightCol)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(leftCol))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(rightCol))
	}
	b.WriteString("\n\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	if len(m.logs) > 0 {
		for _, line := range m.logs {
			b.WriteString(MutedValue.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Persistent error panel (show last 3 errors)
	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.paused {
		b.WriteString(PausedStyle.Render("⏸ PAUSED"))
		b.WriteString(" • ")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	// Animated dots based on time
	dotCount := int(time.Since(m.welcomeStart).Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")
	sb.WriteString(titleStyle.Render("          F L A S H A R B"))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("   flashloan arbitrage coordinator"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("          Scanning%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(MutedValue.Render("   Press any key to skip, or wait..."))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	// Scanning indicator (animated when recently scanned)
	if m.lastScan != nil && time.Since(m.lastUpdate) < 500*time.Millisecond {
		spinners := []string{"⟳", "◐", "◓", "◑", "◒"}
		idx := int(time.Now().UnixMilli()/100) % len(spinners)
		parts = append(parts, StatusRunning.Render(spinners[idx]+" Scanning"))
	}

	if m.lastScan != nil {
		parts = append(parts, fmt.Sprintf("Scan #%d", m.lastScan.Seq))
		gas := fmt.Sprintf("Gas: $%s", m.lastScan.GasUSD.StringFixed(2))
		if m.lastScan.GasFailed {
			gas = StatusWarning.Render(gas)
		}
		parts = append(parts, gas)
	} else {
		parts = append(parts, MutedValue.Render("Waiting for first scan"))
	}

	if m.halted > 0 {
		parts = append(parts, StatusHalted.Render(fmt.Sprintf("%d halted", m.halted)))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

// Run starts the Bubble Tea program until the user quits.
func Run(p *tea.Program) error {
	_, err := p.Run()
	return err
}

// NewProgram creates the dashboard program.
func NewProgram() *tea.Program {
	return tea.NewProgram(New(), tea.WithAltScreen())
}
