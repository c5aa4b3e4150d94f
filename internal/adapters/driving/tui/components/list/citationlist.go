// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
)

// CitationList displays the citations of an answer in a navigable list.
type CitationList struct {
	citations []domain.Citation
	selected  int
	styles    *styles.Styles
	width     int
	height    int
}

// NewCitationList creates a new citation list component.
func NewCitationList(s *styles.Styles) *CitationList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &CitationList{
		citations: nil,
		selected:  0,
		styles:    s,
		width:     80,
		height:    10,
	}
}

// Init initialises the citation list.
func (c *CitationList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (c *CitationList) Update(msg tea.Msg) (*CitationList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyUp:
			c.MoveUp()
		case tea.KeyDown:
			c.MoveDown()
		default:
			// Handle other keys
		}
		switch msg.String() {
		case "k":
			c.MoveUp()
		case "j":
			c.MoveDown()
		}
	}
	return c, nil
}

// View renders the citation list.
func (c *CitationList) View() string {
	if len(c.citations) == 0 {
		return c.styles.Muted.Render("No citations")
	}

	lines := make([]string, 0, len(c.citations)*2+2)

	header := c.styles.Subtitle.Render(fmt.Sprintf("Citations (%d)", len(c.citations)))
	lines = append(lines, header, "")

	// Each citation takes two lines plus spacing
	visibleCount := (c.height - 4) / 3
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if c.selected >= visibleCount {
		start = c.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(c.citations) {
		end = len(c.citations)
	}

	for i := start; i < end; i++ {
		lines = append(lines, c.renderCitation(i, &c.citations[i]))
	}

	return strings.Join(lines, "\n")
}

// renderCitation formats a single citation with its excerpt.
func (c *CitationList) renderCitation(index int, cit *domain.Citation) string {
	indicator := "  "
	if index == c.selected {
		indicator = "> "
	}

	ref := fmt.Sprintf("[%d] %s p.%d lines %s", cit.SentenceIndex+1, cit.Source, cit.Page, cit.Lines())
	if cit.Ticker != "" {
		ref = fmt.Sprintf("[%d] %s %s p.%d lines %s", cit.SentenceIndex+1,
			strings.ToUpper(cit.Ticker), cit.Source, cit.Page, cit.Lines())
	}

	maxRefLen := c.width - 12
	if maxRefLen < 10 {
		maxRefLen = 10
	}
	if len(ref) > maxRefLen {
		ref = ref[:maxRefLen-3] + "..."
	}

	score := fmt.Sprintf("%.2f", cit.Score)

	var refLine string
	if index == c.selected {
		refLine = c.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxRefLen, ref, score))
	} else {
		refLine = c.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxRefLen, ref)) +
			c.styles.Score(cit.Score).Render(score)
	}

	excerpt := strings.Join(strings.Fields(cit.Excerpt), " ")
	maxExcerptLen := c.width - 6
	if maxExcerptLen < 20 {
		maxExcerptLen = 20
	}
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen-3] + "..."
	}

	return refLine + "\n" + c.styles.Excerpt.Render("    "+excerpt)
}

// SetCitations updates the list.
func (c *CitationList) SetCitations(citations []domain.Citation) {
	c.citations = citations
	c.selected = 0
}

// Citations returns the current citations.
func (c *CitationList) Citations() []domain.Citation {
	return c.citations
}

// Selected returns the index of the selected citation.
func (c *CitationList) Selected() int {
	return c.selected
}

// SetSelected sets the selected index.
func (c *CitationList) SetSelected(index int) {
	if index >= 0 && index < len(c.citations) {
		c.selected = index
	}
}

// SelectedCitation returns the currently selected citation, or nil if none.
func (c *CitationList) SelectedCitation() *domain.Citation {
	if len(c.citations) == 0 || c.selected < 0 || c.selected >= len(c.citations) {
		return nil
	}
	return &c.citations[c.selected]
}

// MoveUp moves selection up.
func (c *CitationList) MoveUp() {
	if c.selected > 0 {
		c.selected--
	}
}

// MoveDown moves selection down.
func (c *CitationList) MoveDown() {
	if c.selected < len(c.citations)-1 {
		c.selected++
	}
}

// SetDimensions sets the component dimensions.
func (c *CitationList) SetDimensions(width, height int) {
	c.width = width
	c.height = height
}

// Width returns the current width.
func (c *CitationList) Width() int {
	return c.width
}

// Height returns the current height.
func (c *CitationList) Height() int {
	return c.height
}

// Count returns the number of citations.
func (c *CitationList) Count() int {
	return len(c.citations)
}

// IsEmpty returns whether the list is empty.
func (c *CitationList) IsEmpty() bool {
	return len(c.citations) == 0
}
