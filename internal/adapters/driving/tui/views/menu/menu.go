// Package menu provides the main navigation menu view for the TUI.
package menu

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
)

// Item represents a single menu option.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool // If true, selecting this item quits the app
}

// View represents the main menu view.
type View struct {
	styles   *styles.Styles
	items    []Item
	selected int
	width    int
	height   int
	ready    bool

	filings int
	tickers []string
}

// NewView creates a new menu view.
func NewView(s *styles.Styles) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &View{
		styles: s,
		items: []Item{
			{Label: "Ask", Hint: "Question the indexed filings and get a cited answer", View: messages.ViewAsk},
			{Label: "Documents", Hint: "Browse or remove indexed filings", View: messages.ViewDocuments},
			{Label: "Help", Hint: "Key bindings", View: messages.ViewHelp},
			{Label: "Quit", Quit: true},
		},
		selected: 0,
		width:    80,
		height:   24,
	}
}

// Init initialises the menu view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the menu view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.ready = true
		return v, nil

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "up", "k":
			if v.selected > 0 {
				v.selected--
			}
			return v, nil

		case "down", "j":
			if v.selected < len(v.items)-1 {
				v.selected++
			}
			return v, nil

		case "enter":
			return v, v.activate()

		case "q":
			return v, tea.Quit
		}

		// 1-9 jumps straight to an item
		if len(key) == 1 && key[0] >= '1' && int(key[0]-'0') <= len(v.items) {
			v.selected = int(key[0]-'1')
			return v, v.activate()
		}
	}

	return v, nil
}

func (v *View) activate() tea.Cmd {
	item := v.items[v.selected]
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg {
		return messages.ViewChanged{View: item.View}
	}
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder

	b.WriteString(v.styles.Title.Render("finsight"))
	b.WriteString("\n\n")
	b.WriteString(v.styles.Subtitle.Render("Cited answers from financial filings"))
	b.WriteString("\n")
	b.WriteString(v.coverage())
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d. %s", i+1, item.Label)
		if i == v.selected {
			b.WriteString("> " + v.styles.Selected.Render(label))
			if item.Hint != "" {
				b.WriteString("  " + v.styles.Muted.Render(item.Hint))
			}
		} else {
			b.WriteString("  " + v.styles.Normal.Render(label))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[j/k] Navigate  [1-4] Jump  [Enter] Select  [q] Quit"))

	return b.String()
}

// coverage summarises what is indexed.
func (v *View) coverage() string {
	if v.filings == 0 {
		return v.styles.Muted.Render("No filings indexed yet. Run `finsight index <dir>`.")
	}
	tickers := make([]string, len(v.tickers))
	for i, t := range v.tickers {
		tickers[i] = v.styles.Ticker.Render(t)
	}
	return v.styles.Muted.Render(fmt.Sprintf("%d filing(s) indexed: ", v.filings)) +
		strings.Join(tickers, ", ")
}

// SetDocuments updates the index summary shown under the title.
func (v *View) SetDocuments(docs []domain.DocumentRecord) {
	seen := make(map[string]bool)
	v.tickers = v.tickers[:0]
	for _, d := range docs {
		t := strings.ToUpper(d.Ticker)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		v.tickers = append(v.tickers, t)
	}
	sort.Strings(v.tickers)
	v.filings = len(docs)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Selected returns the currently selected index.
func (v *View) Selected() int {
	return v.selected
}
