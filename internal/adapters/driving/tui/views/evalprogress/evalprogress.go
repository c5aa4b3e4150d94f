// Package evalprogress provides the live progress view of an evaluation run.
package evalprogress

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/core/services"
)

// recentResults is how many finished units are listed under the bar.
const recentResults = 6

// View shows a progress bar, counters and the latest finished units.
type View struct {
	styles   *styles.Styles
	bar      progress.Model
	spinner  spinner.Model
	stop     func()
	total    int
	done     int
	skipped  int
	failed   int
	review   int
	cost     float64
	recent   []domain.EvalResult
	stopping bool
	finished bool
	run      *driving.EvalRun
	err      error
	width    int
}

// Ensure View implements tea.Model.
var _ tea.Model = (*View)(nil)

// NewView creates a progress view for total units. stop is called when
// the user asks to stop the run.
func NewView(s *styles.Styles, total int, stop func()) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	return &View{
		styles:  s,
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		stop:    stop,
		total:   total,
		width:   80,
	}
}

// Init starts the spinner.
func (v *View) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update handles progress, completion and key messages.
func (v *View) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.bar.Width = max(msg.Width-4, 10)
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !v.stopping && v.stop != nil {
				v.stop()
			}
			v.stopping = true
		}
		return v, nil

	case messages.EvalProgressed:
		v.record(msg.Progress)
		return v, nil

	case messages.EvalFinished:
		v.finished = true
		v.run = msg.Run
		v.err = msg.Err
		return v, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}

	return v, nil
}

// record folds one finished unit into the counters.
func (v *View) record(p driving.EvalProgress) {
	v.done = p.Done
	v.skipped = p.Skipped
	if p.Total > 0 {
		v.total = p.Total
	}

	r := p.Last
	switch {
	case r.NeedsReview:
		v.review++
	case r.Failed():
		v.failed++
	}
	v.cost += r.Usage.Cost

	v.recent = append(v.recent, r)
	if len(v.recent) > recentResults {
		v.recent = v.recent[len(v.recent)-recentResults:]
	}
}

// View renders the progress view.
func (v *View) View() string {
	var b strings.Builder

	title := "Evaluating"
	if v.stopping {
		title = "Stopping after in-flight pairs"
	}
	fmt.Fprintf(&b, "%s %s  %s\n\n", v.spinner.View(), v.styles.Title.Render(title),
		v.styles.Muted.Render(fmt.Sprintf("%d/%d", v.done, v.total)))

	b.WriteString(v.bar.ViewAs(v.Fraction()))
	b.WriteString("\n\n")

	counters := fmt.Sprintf("failed %d  needs review %d  cost %s", v.failed, v.review, services.FormatCost(v.cost))
	if v.skipped > 0 {
		counters += fmt.Sprintf("  resumed %d", v.skipped)
	}
	b.WriteString(v.styles.Normal.Render(counters))
	b.WriteString("\n\n")

	for i := range v.recent {
		b.WriteString(v.renderResult(&v.recent[i]))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[q] stop (completed pairs are kept; resume later)"))
	return b.String()
}

func (v *View) renderResult(r *domain.EvalResult) string {
	line := fmt.Sprintf("  %-20s %-16s ", r.Model, r.CaseID)
	switch {
	case r.NeedsReview:
		return v.styles.Warning.Render(line + "needs review")
	case r.Interrupted():
		return v.styles.Muted.Render(line + "interrupted")
	case r.Failed():
		return v.styles.Error.Render(line + "error [" + string(r.ErrorKind) + "]")
	case r.Score == nil:
		return v.styles.Muted.Render(line + "-")
	default:
		return v.styles.Success.Render(line + strconv.FormatFloat(*r.Score, 'f', 2, 64))
	}
}

// Fraction returns the completed share of the run.
func (v *View) Fraction() float64 {
	if v.total <= 0 {
		return 0
	}
	f := float64(v.done) / float64(v.total)
	return min(f, 1)
}

// Finished reports whether the run has ended.
func (v *View) Finished() bool {
	return v.finished
}

// Stopping reports whether the user asked to stop.
func (v *View) Stopping() bool {
	return v.stopping
}

// Result returns the run and error delivered by EvalFinished.
func (v *View) Result() (*driving.EvalRun, error) {
	return v.run, v.err
}
