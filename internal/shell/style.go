package shell

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Styles degrade to plain text automatically when output is not a
// terminal, so tests can assert on content.
var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	commentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	stagedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// banner renders the startup header.
func banner(version, provider, model string) string {
	head := bannerStyle.Render(fmt.Sprintf("ghostshell %s", version))
	sub := subtleStyle.Render(fmt.Sprintf(
		"translator: %s/%s · type commands or plain English · 'mode' to switch · 'exit' to quit",
		provider, model))
	return head + "\n" + sub + "\n"
}
