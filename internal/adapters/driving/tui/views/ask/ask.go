// Package ask provides the question and cited answer view for the TUI.
package ask

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/core/services"
)

// View represents the ask view with question input, answer, citation list
// and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QuestionInput
	list      *list.CitationList
	statusbar *status.Bar

	answerService driving.AnswerService
	ctx           context.Context
	topK          int

	answer     *domain.Answer
	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a question, false = navigating citations
	expanded   bool // show the full excerpt of the selected citation
}

// NewView creates a new ask view.
func NewView(s *styles.Styles, km *keymap.KeyMap, answerService driving.AnswerService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:        s,
		keymap:        km,
		input:         input.NewQuestionInput(s),
		list:          list.NewCitationList(s),
		statusbar:     status.NewBar(s, km),
		answerService: answerService,
		ctx:           context.Background(),
		topK:          domain.DefaultTopK,
		width:         80,
		height:        24,
		focusInput:    true,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithTopK sets how many chunks are retrieved per question.
func (v *View) WithTopK(k int) *View {
	if k > 0 {
		v.topK = k
	}
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerCompleted:
		v.handleAnswerCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var inputCmd tea.Cmd
	v.input, inputCmd = v.input.Update(msg)
	return v, inputCmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		if v.expanded {
			v.expanded = false
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if msg.Type == tea.KeyEnter && v.focusInput {
		question := strings.TrimSpace(v.input.Value())
		if question == "" {
			return v, nil
		}
		v.err = nil
		v.statusbar.SetState(status.StateAsking)
		v.statusbar.SetMessage("")
		v.focusInput = false
		v.input.Blur()
		return v, v.performAsk(question)
	}

	if v.focusInput {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	// Answer mode
	if msg.Type == tea.KeyEnter {
		v.expanded = !v.expanded && v.list.SelectedCitation() != nil
		return v, nil
	}

	//nolint:exhaustive // handling only relevant key types
	switch msg.Type {
	case tea.KeyUp:
		v.list.MoveUp()
		return v, nil
	case tea.KeyDown:
		v.list.MoveDown()
		return v, nil
	}

	switch msg.String() {
	case "k":
		v.list.MoveUp()
	case "j":
		v.list.MoveDown()
	case "o":
		v.showSource()
	case "n":
		v.focusInput = true
		v.expanded = false
		v.input.SetValue("")
		return v, v.input.Focus()
	}

	return v, nil
}

// showSource puts the selected citation's source link in the status bar.
func (v *View) showSource() {
	c := v.list.SelectedCitation()
	if c == nil {
		return
	}
	if c.URL == "" {
		v.statusbar.SetMessage("No link for " + c.Source)
		return
	}
	v.statusbar.SetMessage(c.URL)
}

// performAsk answers a question and reports back via AnswerCompleted.
func (v *View) performAsk(question string) tea.Cmd {
	svc := v.answerService
	ctx := v.ctx
	q := domain.Query{Question: question, TopK: v.topK}

	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoAnswerService}
		}
		answer, err := svc.Ask(ctx, q)
		return messages.AnswerCompleted{Answer: answer, Err: err}
	}
}

// handleAnswerCompleted shows an answer or its error.
func (v *View) handleAnswerCompleted(msg messages.AnswerCompleted) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(fmt.Sprintf("[%s] %s", domain.KindOf(msg.Err), msg.Err.Error()))
		v.focusInput = true
		v.input.Focus()
		return
	}

	v.err = nil
	v.answer = msg.Answer
	v.expanded = false
	v.focusInput = false
	v.input.Blur()
	if msg.Answer == nil {
		v.list.SetCitations(nil)
		v.statusbar.SetState(status.StateReady)
		return
	}

	v.list.SetCitations(msg.Answer.Citations)
	v.statusbar.SetState(status.StateAnswered)
	v.statusbar.SetCitationCount(len(msg.Answer.Citations))
	v.statusbar.SetMessage(usageLine(msg.Answer))
}

func usageLine(a *domain.Answer) string {
	u := a.Usage
	line := fmt.Sprintf("%d in / %d out tokens  %s", u.InputTokens, u.OutputTokens, services.FormatCost(u.Cost))
	if a.Model != "" {
		line = a.Model + "  " + line
	}
	return line
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)

	sections = append(sections, v.styles.Title.Render("finsight"), "")
	sections = append(sections, v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.answer != nil {
		sections = append(sections, v.renderAnswer()...)
		if v.expanded {
			sections = append(sections, v.renderExcerpt())
		} else {
			sections = append(sections, v.list.View())
		}
	}

	sections = append(sections, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderAnswer renders the answer text, uncited sentences and, when no
// context was found, the indexed periods.
func (v *View) renderAnswer() []string {
	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	out := []string{wrap.Render(v.styles.Normal.Render(v.answer.Text)), ""}

	if n := len(v.answer.Gaps); n > 0 {
		out = append(out, v.styles.Warning.Render(fmt.Sprintf("%d sentence(s) could not be attributed to a source", n)), "")
	}

	if len(v.answer.Availability) > 0 {
		lines := []string{v.styles.Subtitle.Render("Indexed periods")}
		for _, ticker := range slices.Sorted(maps.Keys(v.answer.Availability)) {
			lines = append(lines, fmt.Sprintf("  %-8s %s", strings.ToUpper(ticker),
				strings.Join(v.answer.Availability[ticker], ", ")))
		}
		out = append(out, strings.Join(lines, "\n"), "")
	}
	return out
}

// renderExcerpt renders the full text of the selected citation.
func (v *View) renderExcerpt() string {
	c := v.list.SelectedCitation()
	if c == nil {
		return ""
	}
	header := v.styles.Subtitle.Render(fmt.Sprintf("%s p.%d lines %s", c.Source, c.Page, c.Lines()))
	body := lipgloss.NewStyle().Width(max(v.width-4, 20)).Render(c.Excerpt)
	return v.styles.Border.Padding(0, 1).Render(header + "\n\n" + body)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height/2)
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Question returns the current question.
func (v *View) Question() string {
	return v.input.Value()
}

// SetQuestion sets the question input.
func (v *View) SetQuestion(q string) {
	v.input.SetValue(q)
}

// Answer returns the shown answer, if any.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// SelectedIndex returns the index of the selected citation.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Expanded returns whether the selected excerpt is shown in full.
func (v *View) Expanded() bool {
	return v.expanded
}

// StatusMessage returns the status bar message.
func (v *View) StatusMessage() string {
	return v.statusbar.Message()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset resets the view to input mode.
func (v *View) Reset() {
	v.focusInput = true
	v.expanded = false
	v.input.Focus()
	v.input.SetValue("")
	v.answer = nil
	v.list.SetCitations(nil)
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
