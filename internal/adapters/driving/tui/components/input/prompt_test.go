package input

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
)

func typeText(p *Prompt, text string) {
	for _, r := range text {
		p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func TestNewPrompt(t *testing.T) {
	p := NewPrompt(styles.DefaultStyles(), "Ask:", "Type a question...")

	require.NotNil(t, p)
	assert.Equal(t, "", p.Value())
	assert.Equal(t, "Ask:", p.Label())
	assert.True(t, p.Focused())
}

func TestNewPrompt_NilStyles(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	require.NotNil(t, p)
	assert.NotNil(t, p.styles)
}

func TestPrompt_Init(t *testing.T) {
	assert.NotNil(t, NewPrompt(nil, "Ask:", "").Init(), "blink command")
}

func TestPrompt_Update(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	updated, _ := p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})

	assert.Equal(t, p, updated)
	assert.Equal(t, "a", p.Value())
}

func TestPrompt_View(t *testing.T) {
	p := NewPrompt(nil, "Path:", "")
	p.SetValue("docs")

	view := p.View()

	assert.Contains(t, view, "Path:")
	assert.Contains(t, view, "docs")
}

func TestPrompt_Submit(t *testing.T) {
	t.Run("trims and clears", func(t *testing.T) {
		p := NewPrompt(nil, "Ask:", "")
		typeText(p, "  what is rag?  ")

		assert.Equal(t, "what is rag?", p.Submit())
		assert.Equal(t, "", p.Value())
	})

	t.Run("whitespace only", func(t *testing.T) {
		p := NewPrompt(nil, "Ask:", "")
		p.SetValue("   ")

		assert.Equal(t, "", p.Submit())
		assert.Equal(t, "   ", p.Value())
	})
}

func TestPrompt_CharLimit(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")
	typeText(p, strings.Repeat("x", CharLimit+10))

	assert.Len(t, p.Value(), CharLimit)
}

func TestPrompt_FocusBlur(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	p.Blur()
	assert.False(t, p.Focused())

	p.Focus()
	assert.True(t, p.Focused())
}

func TestPrompt_SetWidth(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")

	p.SetWidth(100)
	assert.Equal(t, 100, p.Width())
	assert.Equal(t, 100-4-8, p.textinput.Width)

	p.SetWidth(10)
	assert.Equal(t, 20, p.textinput.Width, "minimum width")
}

func TestPrompt_Reset(t *testing.T) {
	p := NewPrompt(nil, "Ask:", "")
	p.SetValue("hello")

	p.Reset()

	assert.Equal(t, "", p.Value())
}
