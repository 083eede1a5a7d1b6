package ui

import "charm.land/lipgloss/v2"

type Theme struct {
	Header      lipgloss.Style
	Status      lipgloss.Style
	PanelTitle  lipgloss.Style
	PanelBorder lipgloss.Style
	PanelBody   lipgloss.Style
	Selected    lipgloss.Style
	Toast       lipgloss.Style
	Accent      lipgloss.Style
	Pass        lipgloss.Style
	Fail        lipgloss.Style
	Pending     lipgloss.Style
	Muted       lipgloss.Style
	Info        lipgloss.Style

	// Easy, Medium and Hard colour the difficulty column.
	Easy   lipgloss.Style
	Medium lipgloss.Style
	Hard   lipgloss.Style

	// ProgressFrom and ProgressTo are the submit bar gradient.
	ProgressFrom string
	ProgressTo   string
	// Glamour is the standard style used for problem descriptions.
	Glamour string
	// Chroma is the style name for the code preview, "" for none.
	Chroma string
}

func DefaultTheme() Theme {
	return ThemeForVariant("dark")
}

// ThemeForVariant maps the ui.theme setting to a palette. Unknown names get
// the dark theme.
func ThemeForVariant(variant string) Theme {
	switch variant {
	case "light":
		return lightTheme()
	case "notty":
		return plainTheme()
	default:
		return darkTheme()
	}
}

func darkTheme() Theme {
	amber := lipgloss.Color("#FFC857")
	mint := lipgloss.Color("#67F0A8")
	brick := lipgloss.Color("#FF6F91")
	ink := lipgloss.Color("#0E1420")
	slate := lipgloss.Color("#1B2740")
	powder := lipgloss.Color("#EAF2FF")
	blue := lipgloss.Color("#5EEBFF")
	border := lipgloss.Color("#4B5F8A")

	return Theme{
		Header: lipgloss.NewStyle().
			Background(ink).
			Foreground(powder).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Background(slate).
			Foreground(powder).
			Padding(0, 1),
		PanelTitle: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),
		PanelBorder: lipgloss.NewStyle().
			Foreground(border),
		PanelBody: lipgloss.NewStyle().
			Foreground(powder),
		Selected: lipgloss.NewStyle().
			Background(slate).
			Foreground(blue).
			Bold(true),
		Toast: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Foreground(powder).
			Padding(0, 1),
		Accent: lipgloss.NewStyle().
			Foreground(blue).
			Bold(true),
		Pass: lipgloss.NewStyle().
			Foreground(mint).
			Bold(true),
		Fail: lipgloss.NewStyle().
			Foreground(brick).
			Bold(true),
		Pending: lipgloss.NewStyle().
			Foreground(amber),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9CAAC6")),
		Info: lipgloss.NewStyle().
			Foreground(blue),
		Easy:         lipgloss.NewStyle().Foreground(mint),
		Medium:       lipgloss.NewStyle().Foreground(amber),
		Hard:         lipgloss.NewStyle().Foreground(brick),
		ProgressFrom: "#5EEBFF",
		ProgressTo:   "#67F0A8",
		Glamour:      "dark",
		Chroma:       "monokai",
	}
}

func lightTheme() Theme {
	honey := lipgloss.Color("#B7791F")
	sage := lipgloss.Color("#2F855A")
	rose := lipgloss.Color("#C53030")
	paper := lipgloss.Color("#F7F7F2")
	mist := lipgloss.Color("#E2E8F0")
	ink := lipgloss.Color("#1A202C")
	sky := lipgloss.Color("#2B6CB0")

	return Theme{
		Header:      lipgloss.NewStyle().Background(mist).Foreground(ink).Padding(0, 1),
		Status:      lipgloss.NewStyle().Background(paper).Foreground(ink).Padding(0, 1),
		PanelTitle:  lipgloss.NewStyle().Foreground(sky).Bold(true),
		PanelBorder: lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")),
		PanelBody:   lipgloss.NewStyle().Foreground(ink),
		Selected:    lipgloss.NewStyle().Background(mist).Foreground(sky).Bold(true),
		Toast: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(sky).
			Foreground(ink).
			Padding(0, 1),
		Accent:       lipgloss.NewStyle().Foreground(sky).Bold(true),
		Pass:         lipgloss.NewStyle().Foreground(sage).Bold(true),
		Fail:         lipgloss.NewStyle().Foreground(rose).Bold(true),
		Pending:      lipgloss.NewStyle().Foreground(honey),
		Muted:        lipgloss.NewStyle().Foreground(lipgloss.Color("#718096")),
		Info:         lipgloss.NewStyle().Foreground(sky),
		Easy:         lipgloss.NewStyle().Foreground(sage),
		Medium:       lipgloss.NewStyle().Foreground(honey),
		Hard:         lipgloss.NewStyle().Foreground(rose),
		ProgressFrom: "#2B6CB0",
		ProgressTo:   "#2F855A",
		Glamour:      "light",
		Chroma:       "github",
	}
}

// plainTheme carries no colour at all; selection is shown by reverse video.
func plainTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Header:       plain.Bold(true),
		Status:       plain,
		PanelTitle:   plain.Bold(true),
		PanelBorder:  plain,
		PanelBody:    plain,
		Selected:     plain.Reverse(true),
		Toast:        plain.BorderStyle(lipgloss.NormalBorder()).Padding(0, 1),
		Accent:       plain.Bold(true),
		Pass:         plain.Bold(true),
		Fail:         plain.Bold(true),
		Pending:      plain,
		Muted:        plain,
		Info:         plain,
		Easy:         plain,
		Medium:       plain,
		Hard:         plain,
		ProgressFrom: "#FFFFFF",
		ProgressTo:   "#FFFFFF",
		Glamour:      "notty",
	}
}
