package documents

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// mockIndexService implements driving.IndexService for testing.
type mockIndexService struct {
	docs      []domain.DocumentRecord
	listErr   error
	deleteErr error
	deleted   []string
}

func (m *mockIndexService) IndexFile(context.Context, string, domain.DocumentMeta) (*driving.IndexReport, error) {
	return &driving.IndexReport{}, nil
}

func (m *mockIndexService) IndexDocument(context.Context, *domain.Document) (*driving.IndexReport, error) {
	return &driving.IndexReport{}, nil
}

func (m *mockIndexService) IndexDocuments(context.Context, []*domain.Document) []driving.IndexReport {
	return nil
}

func (m *mockIndexService) DeleteDocument(_ context.Context, id string) (int, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return 7, nil
}

func (m *mockIndexService) ListDocuments(context.Context, domain.Filter) ([]domain.DocumentRecord, error) {
	return m.docs, m.listErr
}

func (m *mockIndexService) Availability(context.Context) (map[string][]string, error) {
	return nil, nil
}

func testDocuments() []domain.DocumentRecord {
	return []domain.DocumentRecord{
		{ID: "AMZN_Q3-2025_10q", Ticker: "amzn", Period: "Q3-2025", FilingType: "10-Q",
			Title: "Amazon Q3 2025", SourceFile: "Amazon - Q3 2025.pdf", Pages: 38, Chunks: 120,
			IndexedAt: time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)},
		{ID: "MSFT_FY-2024_10k", Ticker: "msft", Period: "FY-2024", FilingType: "10-K",
			Title: "Microsoft FY 2024", Pages: 110, Chunks: 402},
	}
}

// loaded returns a sized view holding the documents of svc.
func loaded(t *testing.T, svc *mockIndexService) *View {
	t.Helper()
	view := NewView(styles.DefaultStyles(), svc)
	view.SetDimensions(120, 40)
	cmd := view.Init()
	require.NotNil(t, cmd)
	view, _ = view.Update(cmd())
	return view
}

func TestNewView(t *testing.T) {
	view := NewView(nil, nil)

	require.NotNil(t, view)
	assert.NotNil(t, view.styles)
	assert.Empty(t, view.Documents())
	assert.Nil(t, view.SelectedDocument())
}

func TestView_Init_LoadsDocuments(t *testing.T) {
	view := loaded(t, &mockIndexService{docs: testDocuments()})

	assert.Len(t, view.Documents(), 2)
	assert.NoError(t, view.Err())

	out := view.View()
	assert.Contains(t, out, "Indexed filings (2)")
	assert.Contains(t, out, "AMZN")
	assert.Contains(t, out, "Q3-2025")
	assert.Contains(t, out, "Microsoft FY 2024")
}

func TestView_Init_NoService(t *testing.T) {
	view := NewView(nil, nil)
	view.SetDimensions(80, 24)

	msg := view.Init()()
	view, _ = view.Update(msg)

	assert.ErrorIs(t, view.Err(), ErrNoIndexService)
	assert.Contains(t, view.View(), "Error:")
}

func TestView_Init_ListError(t *testing.T) {
	view := loaded(t, &mockIndexService{listErr: errors.New("database locked")})

	assert.EqualError(t, view.Err(), "database locked")
}

func TestView_Empty(t *testing.T) {
	view := loaded(t, &mockIndexService{})

	assert.Contains(t, view.View(), "No filings indexed")
}

func TestView_Navigation(t *testing.T) {
	view := loaded(t, &mockIndexService{docs: testDocuments()})

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, view.SelectedIndex())

	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, view.SelectedIndex())

	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 0, view.SelectedIndex())
	assert.Equal(t, "AMZN_Q3-2025_10q", view.SelectedDocument().ID)
}

func TestView_ShowDetails(t *testing.T) {
	view := loaded(t, &mockIndexService{docs: testDocuments()})

	view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, view.IsShowingMenu())
	assert.Contains(t, view.View(), "Actions for: AMZN_Q3-2025_10q")

	view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, view.IsShowingMenu())
	assert.True(t, view.IsShowingDetails())

	out := view.View()
	assert.Contains(t, out, "Amazon - Q3 2025.pdf")
	assert.Contains(t, out, "2025-11-02")

	// Esc hides details first
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.False(t, view.IsShowingDetails())
}

func TestView_Delete(t *testing.T) {
	svc := &mockIndexService{docs: testDocuments()}
	view := loaded(t, svc)
	view.Update(tea.KeyMsg{Type: tea.KeyDown})

	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	require.True(t, view.IsShowingMenu())

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	deleted, ok := msg.(messages.DocumentDeleted)
	require.True(t, ok)
	assert.Equal(t, "MSFT_FY-2024_10k", deleted.ID)
	assert.Equal(t, []string{"MSFT_FY-2024_10k"}, svc.deleted)

	// Deletion reloads the list
	svc.docs = svc.docs[:1]
	view, cmd = view.Update(deleted)
	require.NotNil(t, cmd)
	view, _ = view.Update(cmd())

	assert.Len(t, view.Documents(), 1)
	assert.Equal(t, 0, view.SelectedIndex())
	assert.Contains(t, view.View(), "Deleted MSFT_FY-2024_10k (7 chunks)")
}

func TestView_Delete_Error(t *testing.T) {
	view := loaded(t, &mockIndexService{docs: testDocuments()})

	view, cmd := view.Update(messages.DocumentDeleted{ID: "x", Err: domain.ErrNotFound})

	assert.Nil(t, cmd)
	assert.ErrorIs(t, view.Err(), domain.ErrNotFound)
}

func TestView_MenuCancel(t *testing.T) {
	view := loaded(t, &mockIndexService{docs: testDocuments()})

	view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	view.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, ActionCancel, view.menuSelected)

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, view.IsShowingMenu())
	assert.False(t, view.IsShowingDetails())
}

func TestView_Reload(t *testing.T) {
	svc := &mockIndexService{}
	view := loaded(t, svc)

	svc.docs = testDocuments()
	view, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.Contains(t, view.View(), "Loading")

	view, _ = view.Update(cmd())
	assert.Len(t, view.Documents(), 2)
}

func TestView_Esc_ReturnsToMenu(t *testing.T) {
	view := loaded(t, &mockIndexService{})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)

	changed, ok := cmd().(messages.ViewChanged)
	require.True(t, ok)
	assert.Equal(t, messages.ViewMenu, changed.View)
}
