package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/kudos/internal/tui/components"
	"github.com/mmcdole/kudos/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return m.renderHelp()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.List.Render(),
		m.renderFooter(),
	)
}

// renderFooter renders a single-line footer: status or key hints on the
// left, feed position on the right
func (m Model) renderFooter() string {
	var left string
	switch {
	case m.StatusMsg != "" && m.StatusIsErr:
		left = styles.ErrorStyle.Render(m.StatusMsg)
	case m.StatusMsg != "":
		left = styles.SuccessStyle.Render(m.StatusMsg)
	case m.loadingPage:
		left = styles.SpinnerStyle.Render(components.SpinnerFrame(m.SpinnerFrame)) + " " + styles.DimStyle.Render("Loading...")
	default:
		left = m.Help.ShortHelpView(m.Keys.ShortHelp())
	}

	position := fmt.Sprintf("%d/%d", min(m.List.Cursor()+1, m.List.Len()), m.List.Len())
	if m.FeedSvc.HasMore() {
		position += "+"
	}
	right := styles.DimStyle.Render(position)

	gap := max(m.Width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right
}

// newHelp returns the footer hint renderer in the app palette
func newHelp() help.Model {
	h := help.New()
	h.ShortSeparator = "  "
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.ShortSeparator = styles.DimStyle
	return h
}

// renderHelp renders the help screen from the key map
func (m Model) renderHelp() string {
	headers := []string{"NAVIGATION", "ACTIONS"}

	var columns []string
	for i, group := range m.Keys.FullHelp() {
		lines := []string{styles.TitleStyle.Render(headers[i])}
		for _, b := range group {
			h := b.Help()
			lines = append(lines, "  "+styles.HelpKeyStyle.Width(8).Render(h.Key)+" "+styles.SubtitleStyle.Render(h.Desc))
		}
		columns = append(columns, strings.Join(lines, "\n"))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, columns[0], "    ", columns[1])
	body += "\n\n" + styles.DimStyle.Render("Press any key to return...")

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(body))
}
