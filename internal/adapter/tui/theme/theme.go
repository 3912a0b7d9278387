// Package theme holds the colors, symbols and styles of the confirmation
// dialogs. All styles use adaptive colors that work on both light and dark
// terminals.
//
// NO_COLOR (https://no-color.org/) is respected automatically by lipgloss via
// its color profile detection.
package theme

import (
	"github.com/charmbracelet/lipgloss"
)

// --- Adaptive Color Palette ---

var (
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#66bb6a"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}

	ColorBorder       = lipgloss.AdaptiveColor{Light: "#bdbdbd", Dark: "#616161"}
	ColorBorderActive = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}

	ColorFgDim     = lipgloss.AdaptiveColor{Light: "#9e9e9e", Dark: "#757575"}
	ColorButtonBg  = lipgloss.AdaptiveColor{Light: "#e0e0e0", Dark: "#333333"}
	ColorButtonFg  = lipgloss.AdaptiveColor{Light: "#616161", Dark: "#9e9e9e"}
	ColorButtonAct = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	ColorButtonTxt = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1e1e1e"}
)

// --- Symbol variables (set by InitSymbols in symbols.go) ---

var (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolInfo    = "●"
	SymbolArrowR  = "→"
	SymbolBullet  = "•"
)

// --- Base styles ---

var (
	Bold = lipgloss.NewStyle().Bold(true)
	Dim  = lipgloss.NewStyle().Faint(true)

	TextSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	TextError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	TextWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	TextInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	TextAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
)

// --- Dialog styles ---

var (
	DialogBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorderActive).
			Padding(1, 2)

	DialogTitle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true).
			Padding(0, 0, 1, 0)

	// Detail rows for transaction fields.
	DetailKey = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Width(8)

	DetailValue = lipgloss.NewStyle().
			Foreground(ColorInfo).
			Bold(true)

	Button = lipgloss.NewStyle().
		Foreground(ColorButtonFg).
		Background(ColorButtonBg).
		Padding(0, 2)

	ButtonActive = lipgloss.NewStyle().
			Foreground(ColorButtonTxt).
			Background(ColorButtonAct).
			Bold(true).
			Padding(0, 2)

	Hint = lipgloss.NewStyle().
		Foreground(ColorFgDim).
		Padding(1, 0, 0, 0)
)

// MaxContentWidth is the recommended max width for readable text content.
const MaxContentWidth = 72

// Clamp returns v clamped to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
