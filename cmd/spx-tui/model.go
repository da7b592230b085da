package main

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"spxbacktest/internal/report"
	"spxbacktest/internal/strategy"
)

// Styles.
var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	metricStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

const (
	maStep  = 5
	pctStep = 0.5
)

// runner is the part of the backtester the UI drives.
type runner interface {
	Run(ctx context.Context, req strategy.Request) (*strategy.BacktestResult, error)
}

// Messages.
type resultMsg struct {
	seq int
	res *strategy.BacktestResult
	err error
	dur time.Duration
}

// Model.
type model struct {
	bt     runner
	ctx    context.Context
	cancel context.CancelFunc
	req    strategy.Request

	seq     int // increments per run; stale results are dropped
	running bool
	res     *strategy.BacktestResult
	err     error
	dur     time.Duration

	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// initialModel returns a model whose first run starts with Init.
func initialModel(bt runner, req strategy.Request) model {
	ctx, cancel := context.WithCancel(context.Background())
	return model{bt: bt, ctx: ctx, cancel: cancel, req: req, seq: 1, running: true}
}

func (m model) Init() tea.Cmd {
	return runBacktest(m.ctx, m.bt, m.req, m.seq)
}

// startRun marks a new run in flight and returns the command performing it.
func (m *model) startRun() tea.Cmd {
	m.seq++
	m.running = true
	return runBacktest(m.ctx, m.bt, m.req, m.seq)
}

// runBacktest runs req off the UI goroutine and reports back as a resultMsg.
func runBacktest(ctx context.Context, bt runner, req strategy.Request, seq int) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		res, err := bt.Run(ctx, req)
		return resultMsg{seq: seq, res: res, err: err, dur: time.Since(start)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "r", "enter":
			if m.running {
				return m, nil
			}
			cmd = m.startRun()
			m.refresh()
			return m, cmd
		case "]":
			m.req.Params.MAPeriod += maStep
			m.refresh()
			return m, nil
		case "[":
			m.req.Params.MAPeriod = max(m.req.Params.MAPeriod-maStep, 1)
			m.refresh()
			return m, nil
		case "=", "+":
			m.req.Params.BuyBelowPct += pctStep
			m.refresh()
			return m, nil
		case "-":
			m.req.Params.BuyBelowPct = math.Max(m.req.Params.BuyBelowPct-pctStep, 0)
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-2, 1) // header and footer
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case resultMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		m.running = false
		m.res, m.err, m.dur = msg.res, msg.err, msg.dur
		m.refresh()
		m.viewport.GotoTop()
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m model) renderContent() string {
	var b strings.Builder
	p := m.req.Params
	fmt.Fprintf(&b, "%s  %s to %s  investment %s  MA %d days  buy below %s%%\n\n",
		m.req.Symbol, m.req.Start.Format("2006-01-02"), m.req.End.Format("2006-01-02"),
		report.FormatCurrency(m.req.InitialInvestment), p.MAPeriod, report.FormatRatio(p.BuyBelowPct))

	switch {
	case m.running && m.res == nil && m.err == nil:
		b.WriteString(dimStyle.Render("Running backtest..."))
		b.WriteByte('\n')
		return b.String()
	case m.err != nil:
		b.WriteString(errStyle.Render("Backtest failed: "))
		b.WriteString(m.err.Error())
		b.WriteByte('\n')
		return b.String()
	case m.res == nil:
		return b.String()
	}

	for _, line := range report.Summary(m.res) {
		b.WriteString(metricStyle.Render(line))
		b.WriteByte('\n')
	}
	for _, line := range report.Details(m.res) {
		b.WriteString(dimStyle.Render(line))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.WriteString(report.Chart(m.res.Series, max(m.width-12, 20), 16))
	if len(m.res.Trades) > 0 {
		b.WriteString("\nTrades\n")
		for _, line := range report.TradeLog(m.res.Trades) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}

	status := "ready"
	switch {
	case m.running:
		status = "running..."
	case m.err != nil:
		status = "failed"
	case m.res != nil:
		status = fmt.Sprintf("done in %s", m.dur.Round(time.Millisecond))
	}
	header := headerStyle.Render(padOrTrunc(fmt.Sprintf(" SPX Backtesting Tool    %s ", status), m.width))
	footer := footerStyle.Render(padOrTrunc(" r: run   [ ]: MA period   - =: buy-below %   arrows: scroll   q: quit", m.width))
	return header + "\n" + m.viewport.View() + "\n" + footer
}

// padOrTrunc pads s with spaces or truncates it to exactly w columns.
func padOrTrunc(s string, w int) string {
	if w <= 0 {
		return s
	}
	if r := []rune(s); len(r) > w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", max(w-lipgloss.Width(s), 0))
}
