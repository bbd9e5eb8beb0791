package cli

import (
	"fmt"
	"strings"

	"github.com/bastiangx/mentionserve/pkg/typeahead"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

var (
	highlightStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
			Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	optionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75"))
	dimStyle = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#9893a5", Dark: "#6e6a86"})
)

// renderMenu draws the option list. Labels are padded or truncated to width
// display columns so wide runes line up.
func renderMenu(state typeahead.State, width int, showPending bool) string {
	if !state.Active {
		return dimStyle.Render("(menu closed)")
	}

	var b strings.Builder
	header := fmt.Sprintf("@%s", state.Query)
	if showPending && state.Pending {
		header += " …"
	}
	b.WriteString(dimStyle.Render(header))

	if len(state.Options) == 0 {
		if !state.Pending {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render("   no matches"))
		}
		return b.String()
	}

	for i, opt := range state.Options {
		label := runewidth.FillRight(runewidth.Truncate(opt.Label, width, "…"), width)
		line := fmt.Sprintf("%2d. %s", i+1, label)

		b.WriteString("\n")
		if i == state.SelectedIndex {
			b.WriteString(highlightStyle.Render(line))
		} else {
			b.WriteString(optionStyle.Render(line))
		}
	}
	return b.String()
}
