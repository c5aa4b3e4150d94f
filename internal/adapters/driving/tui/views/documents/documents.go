// Package documents provides the indexed filings view for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// ErrNoIndexService indicates that no index service was provided.
var ErrNoIndexService = errors.New("index service not available")

// ActionOption represents a document action.
type ActionOption int

const (
	ActionShowDetails ActionOption = iota
	ActionDelete
	ActionCancel
)

// View is the indexed documents list view.
type View struct {
	styles       *styles.Styles
	indexService driving.IndexService
	ctx          context.Context

	documents    []domain.DocumentRecord
	selected     int
	width        int
	height       int
	ready        bool
	err          error
	notice       string
	loading      bool
	showingMenu  bool
	showDetails  bool
	menuSelected ActionOption
	scrollOffset int
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, indexService driving.IndexService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:       s,
		indexService: indexService,
		ctx:          context.Background(),
		documents:    []domain.DocumentRecord{},
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the documents.
func (v *View) Init() tea.Cmd {
	v.loading = true
	v.err = nil
	v.notice = ""
	v.showingMenu = false
	v.showDetails = false
	return v.loadDocuments()
}

// loadDocuments returns a command that lists every indexed document.
func (v *View) loadDocuments() tea.Cmd {
	svc := v.indexService
	ctx := v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: ErrNoIndexService}
		}
		docs, err := svc.ListDocuments(ctx, domain.Filter{})
		return messages.DocumentsLoaded{Documents: docs, Err: err}
	}
}

// deleteDocument returns a command that removes a document and its chunks.
func (v *View) deleteDocument(id string) tea.Cmd {
	svc := v.indexService
	ctx := v.ctx
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentDeleted{ID: id, Err: ErrNoIndexService}
		}
		n, err := svc.DeleteDocument(ctx, id)
		return messages.DocumentDeleted{ID: id, Chunks: n, Err: err}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.showingMenu {
			return v.handleMenuKeyMsg(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.documents = msg.Documents
		v.err = nil
		if v.selected >= len(v.documents) {
			v.selected = max(len(v.documents)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Deleted %s (%d chunks)", msg.ID, msg.Chunks)
		v.loading = true
		return v, v.loadDocuments()

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
		v.showDetails = false
	case "down", "j":
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
		v.showDetails = false
	case "enter":
		if len(v.documents) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionShowDetails
		}
	case "d":
		if len(v.documents) > 0 {
			v.showingMenu = true
			v.menuSelected = ActionDelete
		}
	case "esc":
		if v.showDetails {
			v.showDetails = false
			return v, nil
		}
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case "r":
		v.loading = true
		v.notice = ""
		return v, v.loadDocuments()
	}

	return v, nil
}

// handleMenuKeyMsg handles key presses in action menu mode.
func (v *View) handleMenuKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.menuSelected > ActionShowDetails {
			v.menuSelected--
		}
	case "down", "j":
		if v.menuSelected < ActionCancel {
			v.menuSelected++
		}
	case "enter":
		return v.handleMenuSelect()
	case "esc":
		v.showingMenu = false
	}

	return v, nil
}

// handleMenuSelect handles selection of an action.
func (v *View) handleMenuSelect() (*View, tea.Cmd) {
	v.showingMenu = false
	if v.selected >= len(v.documents) {
		return v, nil
	}

	switch v.menuSelected {
	case ActionShowDetails:
		v.showDetails = true
	case ActionDelete:
		return v, v.deleteDocument(v.documents[v.selected].ID)
	case ActionCancel:
	}

	return v, nil
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visibleItems := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visibleItems {
		v.scrollOffset = v.selected - visibleItems + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Reserve lines for title, header, notice and help
	available := v.height - 9
	if v.showDetails {
		available -= 9
	}
	if available < 1 {
		available = 1
	}
	return available
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Indexed filings (%d)", len(v.documents))))
	b.WriteString("\n\n")

	if v.loading {
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if len(v.documents) == 0 {
		b.WriteString(v.styles.Muted.Render("No filings indexed. Run 'finsight index <dir>' first."))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.showingMenu {
		b.WriteString(v.renderActionMenu())
		return b.String()
	}

	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  %-8s %-10s %-8s %6s %7s  %s",
		"TICKER", "PERIOD", "TYPE", "PAGES", "CHUNKS", "TITLE")))
	b.WriteString("\n")

	visibleItems := v.visibleItemCount()
	for i := v.scrollOffset; i < len(v.documents) && i < v.scrollOffset+visibleItems; i++ {
		b.WriteString(v.renderDocument(i, &v.documents[i]))
		b.WriteString("\n")
	}

	if len(v.documents) > visibleItems {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
			v.scrollOffset+1,
			min(v.scrollOffset+visibleItems, len(v.documents)),
			len(v.documents))))
		b.WriteString("\n")
	}

	if v.showDetails && v.selected < len(v.documents) {
		b.WriteString("\n")
		b.WriteString(v.renderDetails(&v.documents[v.selected]))
		b.WriteString("\n")
	}

	if v.notice != "" {
		b.WriteString("\n")
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

// renderDocument renders a single document line.
func (v *View) renderDocument(index int, doc *domain.DocumentRecord) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	title := doc.Title
	if title == "" {
		title = doc.ID
	}
	maxTitleLen := v.width - 48
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	line := fmt.Sprintf("%s%-8s %-10s %-8s %6d %7d  %s", indicator,
		strings.ToUpper(doc.Ticker), doc.Period, doc.FilingType, doc.Pages, doc.Chunks, title)
	if index == v.selected {
		return v.styles.Selected.Render(line)
	}
	return v.styles.Normal.Render(line)
}

// renderDetails renders the metadata of one document.
func (v *View) renderDetails(doc *domain.DocumentRecord) string {
	rows := []struct{ label, value string }{
		{"ID", doc.ID},
		{"Ticker", strings.ToUpper(doc.Ticker)},
		{"Period", doc.Period},
		{"Type", doc.FilingType},
		{"File", doc.SourceFile},
		{"URL", doc.SourceURL},
		{"Indexed", formatTime(doc.IndexedAt)},
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.value == "" {
			continue
		}
		lines = append(lines, v.styles.Muted.Render(fmt.Sprintf("%-8s ", r.label))+v.styles.Normal.Render(r.value))
	}
	return v.styles.Border.Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// renderActionMenu renders the action menu overlay.
func (v *View) renderActionMenu() string {
	var b strings.Builder

	if v.selected < len(v.documents) {
		doc := v.documents[v.selected]
		b.WriteString(v.styles.Subtitle.Render(fmt.Sprintf("Actions for: %s", doc.ID)))
		b.WriteString("\n\n")
	}

	options := []struct {
		action ActionOption
		label  string
	}{
		{ActionShowDetails, "Show Details"},
		{ActionDelete, "Delete from index"},
		{ActionCancel, "Cancel"},
	}

	for _, opt := range options {
		if v.menuSelected == opt.action {
			b.WriteString(v.styles.Selected.Render("> " + opt.label))
		} else {
			b.WriteString(v.styles.Normal.Render("  " + opt.label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] navigate  [enter] select  [esc] cancel"))

	return b.String()
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render("[↑/↓] navigate  [enter] actions  [d] delete  [r] reload  [esc] back")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.DocumentRecord {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.DocumentRecord {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// IsShowingMenu returns true if the action menu is visible.
func (v *View) IsShowingMenu() bool {
	return v.showingMenu
}

// IsShowingDetails returns true if the details pane is visible.
func (v *View) IsShowingDetails() bool {
	return v.showDetails
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
