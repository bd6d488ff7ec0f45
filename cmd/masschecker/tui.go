package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/exomass/masschecker-go/internal/types"
)

// resultMsg carries one finished check into the progress view.
type resultMsg struct {
	result types.CheckResult
	done   int
}

// batchDoneMsg signals that all checks have completed.
type batchDoneMsg struct{}

const recentLimit = 8

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("57")).Padding(0, 1)
	barDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barRestStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	validStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	invalidStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	captchaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	twofaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
	quittingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// progressModel renders batch progress. Results arrive as messages from
// the batch goroutine; ctrl+c cancels the batch context and waits for
// in-flight checks to drain.
type progressModel struct {
	total     int
	done      int
	target    string
	cancel    context.CancelFunc
	summary   types.BatchSummary
	recent    []types.CheckResult
	started   time.Time
	width     int
	canceling bool
}

func newProgressModel(total int, target string, cancel context.CancelFunc) progressModel {
	return progressModel{
		total:   total,
		target:  target,
		cancel:  cancel,
		started: time.Now(),
		width:   80,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.canceling = true
			m.cancel()
			return m, nil
		}
		return m, nil

	case resultMsg:
		m.done = msg.done
		m.summary.Add(msg.result)
		m.recent = append(m.recent, msg.result)
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
		return m, nil

	case batchDoneMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("MassChecker"))
	b.WriteString(faintStyle.Render("  " + m.target))
	b.WriteString("\n\n")

	b.WriteString(m.renderBar())
	b.WriteString(fmt.Sprintf("  %d/%d", m.done, m.total))
	if m.done > 0 {
		elapsed := time.Since(m.started)
		rate := elapsed / time.Duration(m.done)
		remaining := rate * time.Duration(m.total-m.done)
		b.WriteString(faintStyle.Render(fmt.Sprintf("  eta %s", remaining.Round(time.Second))))
	}
	b.WriteString("\n\n")

	b.WriteString(strings.Join([]string{
		validStyle.Render(fmt.Sprintf("valid %d", m.summary.Valid)),
		invalidStyle.Render(fmt.Sprintf("invalid %d", m.summary.Invalid)),
		captchaStyle.Render(fmt.Sprintf("captcha %d", m.summary.Captcha)),
		twofaStyle.Render(fmt.Sprintf("2fa %d", m.summary.TwoFA)),
		errorStyle.Render(fmt.Sprintf("errors %d", m.summary.Error)),
	}, "  "))
	b.WriteString("\n\n")

	for _, r := range m.recent {
		b.WriteString(statusBadge(r.Status))
		b.WriteString(" ")
		b.WriteString(r.Credential.Email)
		b.WriteString(faintStyle.Render(fmt.Sprintf("  %s", r.Elapsed.Round(100*time.Millisecond))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.canceling {
		b.WriteString(quittingStyle.Render("Canceling, waiting for in-flight checks..."))
	} else {
		b.WriteString(faintStyle.Render("press q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func (m progressModel) renderBar() string {
	barWidth := m.width - 20
	if barWidth < 10 {
		barWidth = 10
	}
	filled := 0
	if m.total > 0 {
		filled = barWidth * m.done / m.total
	}
	return barDoneStyle.Render(strings.Repeat("█", filled)) +
		barRestStyle.Render(strings.Repeat("░", barWidth-filled))
}

func statusBadge(s types.CheckStatus) string {
	switch s {
	case types.StatusValid:
		return validStyle.Render("✓")
	case types.StatusInvalid:
		return invalidStyle.Render("✗")
	case types.StatusCaptcha:
		return captchaStyle.Render("■")
	case types.StatusTwoFA:
		return twofaStyle.Render("◆")
	default:
		return errorStyle.Render("!")
	}
}
