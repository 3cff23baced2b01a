package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// Theme bundles the colors and pre-computed styles the views share.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Risk bands
	RiskLow    lipgloss.AdaptiveColor
	RiskMedium lipgloss.AdaptiveColor
	RiskHigh   lipgloss.AdaptiveColor

	// UI elements
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor

	// Styles
	Base      lipgloss.Style
	Header    lipgloss.Style
	TabActive lipgloss.Style
	TabIdle   lipgloss.Style
	MutedText lipgloss.Style
	ErrorText lipgloss.Style
	OKText    lipgloss.Style
	WarnText  lipgloss.Style
	Skeleton  lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive).
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#6272A4"},

		RiskLow:    lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#50FA7B"},
		RiskMedium: lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#F1FA8C"},
		RiskHigh:   lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#FF5555"},

		Border:    lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#FF79C6"},
		Muted:     lipgloss.AdaptiveColor{Light: "#8C959F", Dark: "#6272A4"},
	}

	t.Base = r.NewStyle()
	t.Header = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.TabActive = r.NewStyle().Foreground(t.Highlight).Bold(true).Underline(true)
	t.TabIdle = r.NewStyle().Foreground(t.Subtext)
	t.MutedText = r.NewStyle().Foreground(t.Muted)
	t.ErrorText = r.NewStyle().Foreground(t.RiskHigh)
	t.OKText = r.NewStyle().Foreground(t.RiskLow)
	t.WarnText = r.NewStyle().Foreground(t.RiskMedium)
	t.Skeleton = r.NewStyle().Foreground(t.Muted).Italic(true)

	return t
}

// RiskStyle picks the style for a 0..1 risk score.
func (t Theme) RiskStyle(score float64) lipgloss.Style {
	switch {
	case score >= 0.7:
		return t.ErrorText
	case score >= 0.4:
		return t.WarnText
	default:
		return t.OKText
	}
}

// HealthStyle picks the style for a 0..100 health score.
func (t Theme) HealthStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return t.OKText
	case score >= 50:
		return t.WarnText
	default:
		return t.ErrorText
	}
}
