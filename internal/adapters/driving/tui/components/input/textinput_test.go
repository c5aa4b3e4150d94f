package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
)

func TestNewQuestionInput(t *testing.T) {
	input := NewQuestionInput(styles.DefaultStyles())

	require.NotNil(t, input)
	assert.Equal(t, "", input.Value())
	assert.True(t, input.Focused())
}

func TestNewQuestionInput_NilStyles(t *testing.T) {
	input := NewQuestionInput(nil)

	require.NotNil(t, input)
	assert.NotNil(t, input.styles)
}

func TestQuestionInput_Init(t *testing.T) {
	input := NewQuestionInput(nil)

	// Blink command should be returned
	assert.NotNil(t, input.Init())
}

func TestQuestionInput_View(t *testing.T) {
	input := NewQuestionInput(nil)

	assert.Contains(t, input.View(), "Ask")
}

func TestQuestionInput_Typing(t *testing.T) {
	input := NewQuestionInput(nil)

	for _, k := range "AWS?" {
		input.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{k}})
	}
	assert.Equal(t, "AWS?", input.Value())

	input.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "AWS", input.Value())
}

func TestQuestionInput_FocusBlur(t *testing.T) {
	input := NewQuestionInput(nil)

	input.Blur()
	assert.False(t, input.Focused())

	cmd := input.Focus()
	assert.NotNil(t, cmd)
	assert.True(t, input.Focused())
}

func TestQuestionInput_SetWidth(t *testing.T) {
	input := NewQuestionInput(nil)
	assert.Equal(t, 50, input.Width())

	input.SetWidth(100)
	assert.Equal(t, 100, input.Width())
	assert.Equal(t, 90, input.textinput.Width)

	input.SetWidth(10)
	assert.Equal(t, 20, input.textinput.Width)
}

func TestQuestionInput_Reset(t *testing.T) {
	input := NewQuestionInput(nil)
	input.SetValue("What was free cash flow?")

	input.Reset()

	assert.Equal(t, "", input.Value())
}
