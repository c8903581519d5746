package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFolderInput(t *testing.T) {
	in := NewFolderInput(nil)

	require.NotNil(t, in)
	assert.NotNil(t, in.styles)
	assert.Empty(t, in.Value())
	assert.False(t, in.Focused())
	assert.Equal(t, 50, in.Width())
}

func TestFolderInput_Typing(t *testing.T) {
	in := NewFolderInput(nil)
	in.Focus()

	for _, r := range "exports/2026" {
		in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Equal(t, "exports/2026", in.Value())

	in.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "exports/202", in.Value())
}

func TestFolderInput_ValueIsTrimmed(t *testing.T) {
	in := NewFolderInput(nil)

	in.SetValue("  inbox/  ")

	assert.Equal(t, "inbox/", in.Value())
}

func TestFolderInput_FocusBlur(t *testing.T) {
	in := NewFolderInput(nil)

	cmd := in.Focus()
	assert.NotNil(t, cmd)
	assert.True(t, in.Focused())

	in.Blur()
	assert.False(t, in.Focused())
}

func TestFolderInput_View(t *testing.T) {
	in := NewFolderInput(nil)

	assert.Contains(t, in.View(), "Folder")
}

func TestFolderInput_SetWidth(t *testing.T) {
	in := NewFolderInput(nil)

	in.SetWidth(10)

	assert.Equal(t, 10, in.Width())
	assert.Equal(t, 20, in.textinput.Width)
}
