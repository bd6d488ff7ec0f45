package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/exomass/masschecker-go/internal/stats"
	"github.com/exomass/masschecker-go/internal/types"
)

func TestProgressModelUpdate(t *testing.T) {
	canceled := false
	m := newProgressModel(3, "https://example.com/login", func() { canceled = true })

	next, _ := m.Update(resultMsg{
		result: types.CheckResult{
			Credential: types.Credential{Email: "a@example.com"},
			Status:     types.StatusValid,
		},
		done: 1,
	})
	m = next.(progressModel)
	if m.done != 1 || m.summary.Valid != 1 {
		t.Errorf("after resultMsg: done=%d valid=%d", m.done, m.summary.Valid)
	}

	next, cmd := m.Update(batchDoneMsg{})
	m = next.(progressModel)
	if cmd == nil {
		t.Error("batchDoneMsg should quit the program")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = next.(progressModel)
	if !canceled || !m.canceling {
		t.Error("ctrl+c should cancel the batch")
	}
}

func TestProgressModelRecentCapped(t *testing.T) {
	m := newProgressModel(100, "https://example.com", func() {})
	for i := 0; i < recentLimit+5; i++ {
		next, _ := m.Update(resultMsg{
			result: types.CheckResult{Status: types.StatusInvalid},
			done:   i + 1,
		})
		m = next.(progressModel)
	}
	if len(m.recent) != recentLimit {
		t.Errorf("recent length = %d, want %d", len(m.recent), recentLimit)
	}
}

func TestProgressModelView(t *testing.T) {
	m := newProgressModel(2, "https://example.com/login", func() {})
	next, _ := m.Update(resultMsg{
		result: types.CheckResult{
			Credential: types.Credential{Email: "a@example.com"},
			Status:     types.StatusCaptcha,
		},
		done: 1,
	})
	m = next.(progressModel)

	view := m.View()
	for _, want := range []string{"1/2", "a@example.com", "captcha 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestRenderSummary(t *testing.T) {
	summary := types.BatchSummary{Total: 5, Valid: 2, Invalid: 1, Captcha: 1, Error: 1}
	out := renderSummary(summary, map[string]stats.Snapshot{})
	for _, want := range []string{"total    5", "valid    2", "invalid  1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	perProxy := map[string]stats.Snapshot{
		"http://p1.example.com:8080_http": {Checks: 3, SolveRate: 1},
		"http://p2.example.com:8080_http": {Checks: 2, SolveRate: 0.5},
	}
	out = renderSummary(summary, perProxy)
	if !strings.Contains(out, "Per proxy") || !strings.Contains(out, "p1.example.com") {
		t.Errorf("per-proxy section missing:\n%s", out)
	}
}
