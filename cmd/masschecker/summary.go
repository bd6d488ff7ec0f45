package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/exomass/masschecker-go/internal/stats"
	"github.com/exomass/masschecker-go/internal/types"
)

var (
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(0, 2)
	summaryHeadStyle = lipgloss.NewStyle().Bold(true)
)

// renderSummary builds the end-of-run report: batch totals plus a
// per-proxy breakdown when more than one proxy was in play.
func renderSummary(summary types.BatchSummary, perProxy map[string]stats.Snapshot) string {
	var b strings.Builder

	b.WriteString(summaryHeadStyle.Render("Batch summary"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("total    %d\n", summary.Total))
	b.WriteString(validStyle.Render(fmt.Sprintf("valid    %d", summary.Valid)) + "\n")
	b.WriteString(invalidStyle.Render(fmt.Sprintf("invalid  %d", summary.Invalid)) + "\n")
	b.WriteString(captchaStyle.Render(fmt.Sprintf("captcha  %d", summary.Captcha)) + "\n")
	b.WriteString(twofaStyle.Render(fmt.Sprintf("2fa      %d", summary.TwoFA)) + "\n")
	b.WriteString(errorStyle.Render(fmt.Sprintf("errors   %d", summary.Error)))

	if len(perProxy) > 1 {
		b.WriteString("\n\n")
		b.WriteString(summaryHeadStyle.Render("Per proxy"))
		b.WriteString("\n")

		keys := make([]string, 0, len(perProxy))
		for k := range perProxy {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s := perProxy[k]
			b.WriteString(fmt.Sprintf("%-40s checks %-5d solve rate %.0f%%  avg %s\n",
				k, s.Checks, s.SolveRate*100, s.AvgDuration.Round(100*time.Millisecond)))
		}
	}

	return summaryBoxStyle.Render(b.String())
}
