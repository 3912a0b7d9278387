// Package confirm renders wallet confirmation dialogs in the terminal.
package confirm

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"walletbridge/internal/adapter/tui/theme"
	"walletbridge/internal/domain"
)

// Button indexes.
const (
	buttonConfirm = iota
	buttonCancel
)

// Model is a two-button modal for one prompt. Focus starts on the cancel
// button so a stray enter never approves.
type Model struct {
	prompt  domain.Prompt
	keys    KeyMap
	focus   int
	decided bool
	answer  bool
	width   int
}

// NewModel creates the dialog for p.
func NewModel(p domain.Prompt) Model {
	if p.ConfirmLabel == "" {
		p.ConfirmLabel = "OK"
	}
	if p.CancelLabel == "" {
		p.CancelLabel = "Cancel"
	}
	return Model{
		prompt: p,
		keys:   DefaultKeyMap(),
		focus:  buttonCancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Toggle):
			m.focus = 1 - m.focus
			return m, nil
		case key.Matches(msg, m.keys.Confirm):
			return m.decide(true)
		case key.Matches(msg, m.keys.Cancel):
			return m.decide(false)
		case key.Matches(msg, m.keys.Select):
			return m.decide(m.focus == buttonConfirm)
		}
	}
	return m, nil
}

func (m Model) decide(answer bool) (tea.Model, tea.Cmd) {
	m.decided = true
	m.answer = answer
	return m, tea.Quit
}

// Answer reports the user's choice and whether one was made.
func (m Model) Answer() (confirmed, decided bool) {
	return m.answer, m.decided
}

// View implements tea.Model.
func (m Model) View() string {
	if m.decided {
		return m.summary() + "\n"
	}

	width := theme.MaxContentWidth
	if m.width > 0 {
		width = theme.Clamp(m.width-6, 20, theme.MaxContentWidth)
	}

	var body strings.Builder
	body.WriteString(theme.DialogTitle.Render(m.icon() + " " + m.prompt.Title))
	body.WriteString("\n")
	body.WriteString(lipgloss.NewStyle().Width(width).Render(m.headline()))

	if tx := m.prompt.Tx; tx != nil {
		body.WriteString("\n\n")
		body.WriteString(theme.DetailKey.Render("To") + theme.DetailValue.Render(orDash(tx.To)))
		body.WriteString("\n")
		body.WriteString(theme.DetailKey.Render("Value") + theme.DetailValue.Render(tx.Value+" ETH"))
	}

	body.WriteString("\n\n")
	body.WriteString(m.buttons())
	body.WriteString(theme.Hint.Render(m.helpLine()))

	return theme.DialogBorder.Render(body.String()) + "\n"
}

// headline is the first paragraph of the message. Transaction details are
// drawn from Tx instead of the plain-text tail.
func (m Model) headline() string {
	if m.prompt.Tx == nil {
		return m.prompt.Message
	}
	head, _, _ := strings.Cut(m.prompt.Message, "\n\n")
	return head
}

func (m Model) icon() string {
	if m.prompt.Kind == domain.PromptTransaction {
		return theme.TextWarning.Render(theme.SymbolWarning)
	}
	return theme.TextInfo.Render(theme.SymbolInfo)
}

func (m Model) buttons() string {
	style := func(i int) lipgloss.Style {
		if m.focus == i {
			return theme.ButtonActive
		}
		return theme.Button
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		style(buttonConfirm).Render(m.prompt.ConfirmLabel),
		"  ",
		style(buttonCancel).Render(m.prompt.CancelLabel),
	)
}

func (m Model) helpLine() string {
	parts := make([]string, 0, 4)
	for _, b := range m.keys.help() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}

func (m Model) summary() string {
	if m.answer {
		return theme.TextSuccess.Render(theme.SymbolSuccess) + " " + m.prompt.Title + " " +
			theme.TextMuted.Render(theme.SymbolArrowR+" "+m.prompt.ConfirmLabel)
	}
	return theme.TextError.Render(theme.SymbolError) + " " + m.prompt.Title + " " +
		theme.TextMuted.Render(theme.SymbolArrowR+" "+m.prompt.CancelLabel)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
