// Package input provides text input components for the TUI.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/synchronoux/internal/adapters/driving/tui/styles"
)

// FolderInput edits the middle store folder used by the next run.
type FolderInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewFolderInput creates an unfocused folder input.
func NewFolderInput(s *styles.Styles) *FolderInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "default pull prefix"
	ti.CharLimit = 512
	ti.Width = 50

	return &FolderInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Update handles input messages.
func (f *FolderInput) Update(msg tea.Msg) (*FolderInput, tea.Cmd) {
	var cmd tea.Cmd
	f.textinput, cmd = f.textinput.Update(msg)
	return f, cmd
}

// View renders the input with its label.
func (f *FolderInput) View() string {
	label := f.styles.Title.Render("Folder: ")
	field := f.styles.InputField.Render(f.textinput.View())
	//nolint:misspell // lipgloss.Center is the library constant
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

// Value returns the trimmed folder, "" meaning the configured prefix.
func (f *FolderInput) Value() string {
	return strings.TrimSpace(f.textinput.Value())
}

// SetValue sets the input value.
func (f *FolderInput) SetValue(value string) {
	f.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (f *FolderInput) Focus() tea.Cmd {
	return f.textinput.Focus()
}

// Blur removes focus from the input.
func (f *FolderInput) Blur() {
	f.textinput.Blur()
}

// Focused returns whether the input is focused.
func (f *FolderInput) Focused() bool {
	return f.textinput.Focused()
}

// SetWidth sets the width of the input.
func (f *FolderInput) SetWidth(width int) {
	f.width = width
	inputWidth := width - 12
	if inputWidth < 20 {
		inputWidth = 20
	}
	f.textinput.Width = inputWidth
}

// Width returns the current width.
func (f *FolderInput) Width() int {
	return f.width
}
