// Package report renders evaluation reports as terminal tables.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/services"
)

// questionWidth caps the question column of the case table.
const questionWidth = 48

// Render renders the per-model and per-case tables of rep. A width of
// zero leaves tables at their natural width.
func Render(rep domain.Report, s *styles.Styles, width int) string {
	if s == nil {
		s = styles.DefaultStyles()
	}

	var b strings.Builder
	b.WriteString(s.Title.Render("Run " + rep.RunID))
	b.WriteString(s.Muted.Render(fmt.Sprintf("  pass threshold %.2f", rep.Threshold)))
	b.WriteString("\n\n")

	if len(rep.Models) == 0 {
		b.WriteString(s.Muted.Render("No results."))
		return b.String()
	}

	b.WriteString(s.Subtitle.Render("Models"))
	b.WriteString("\n")
	b.WriteString(ModelTable(rep, s, width))
	b.WriteString("\n")

	if failed := failedLines(rep, s); failed != "" {
		b.WriteString(failed)
		b.WriteString("\n")
	}

	if len(rep.Cases) > 0 {
		b.WriteString("\n")
		b.WriteString(s.Subtitle.Render("Cases"))
		b.WriteString("\n")
		b.WriteString(CaseTable(rep, s, width))
	}

	return b.String()
}

// ModelTable renders one row per model.
func ModelTable(rep domain.Report, s *styles.Styles, width int) string {
	t := newTable(s, width).
		Headers("MODEL", "CASES", "SCORED", "FAILED", "REVIEW", "MEAN", "PASS", "TOKENS IN", "TOKENS OUT", "COST")

	for _, m := range rep.Models {
		t.Row(
			m.Model,
			strconv.Itoa(m.Cases),
			strconv.Itoa(m.Scored),
			strconv.Itoa(m.Failed),
			strconv.Itoa(m.Review),
			score(m.MeanScore),
			percent(m.PassRate),
			strconv.Itoa(m.InputTokens),
			strconv.Itoa(m.OutputTokens),
			services.FormatCost(m.TotalCost),
		)
	}
	return t.Render()
}

// CaseTable renders one row per case with a column per model.
func CaseTable(rep domain.Report, s *styles.Styles, width int) string {
	headers := []string{"CASE", "QUESTION"}
	for _, m := range rep.Models {
		headers = append(headers, m.Model)
	}
	headers = append(headers, "MEAN", "SPREAD")

	t := newTable(s, width).Headers(headers...)
	for _, c := range rep.Cases {
		row := []string{c.CaseID, truncate(c.Question, questionWidth)}
		for _, m := range rep.Models {
			row = append(row, score(c.Scores[m.Model]))
		}
		row = append(row, score(c.Mean), score(c.Spread))
		t.Row(row...)
	}
	return t.Render()
}

func newTable(s *styles.Styles, width int) *table.Table {
	if s == nil {
		s = styles.DefaultStyles()
	}
	border := lipgloss.NewStyle().Foreground(s.Theme().Border)
	header := s.Subtitle.Padding(0, 1)
	cell := s.Normal.Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	if width > 0 {
		t = t.Width(width)
	}
	return t
}

// failedLines lists the failed and interrupted cases of each model.
func failedLines(rep domain.Report, s *styles.Styles) string {
	var lines []string
	for _, m := range rep.Models {
		if len(m.FailedCases) > 0 {
			lines = append(lines, s.Warning.Render(fmt.Sprintf("%s: no score for %s", m.Model, strings.Join(m.FailedCases, ", "))))
		}
		if len(m.InterruptedCases) > 0 {
			lines = append(lines, s.Muted.Render(fmt.Sprintf("%s: not evaluated (interrupted) %s", m.Model, strings.Join(m.InterruptedCases, ", "))))
		}
	}
	return strings.Join(lines, "\n")
}

func score(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v*100, 'f', 0, 64) + "%"
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
