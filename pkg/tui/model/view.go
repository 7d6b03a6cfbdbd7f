package model

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/modoterra/rawlog/pkg/core"
)

const statusBarHeight = 2

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	levelStyles = map[core.Level]lipgloss.Style{
		core.LevelDebug:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		core.LevelInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.LevelWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.LevelError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		core.LevelCritical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View renders the TUI.
func (a App) View() string {
	if !a.ready {
		return "loading..."
	}

	if a.mode == ModeCompose && a.composer != nil {
		return paneStyle.Width(a.width - 4).Height(a.height - 2).Render(a.composer.View(a.width - 4))
	}

	return lipgloss.JoinVertical(lipgloss.Left, a.viewport.View(), a.renderStatusBar())
}

// render returns the log contents with entry headers colored by level and
// search matches highlighted.
func (a App) render() string {
	if a.contents == "" {
		return dimStyle.Render("No logs found.")
	}

	q := strings.ToLower(a.search.Value())
	lines := strings.Split(a.contents, "\n")
	for i, line := range lines {
		switch {
		case q != "" && strings.Contains(strings.ToLower(line), q):
			lines[i] = matchStyle.Render(line)
		default:
			lines[i] = colorHeader(line)
		}
	}
	return strings.Join(lines, "\n")
}

func colorHeader(line string) string {
	_, level, _, ok := core.ParseHeader(line)
	if !ok {
		return line
	}
	style, found := levelStyles[level]
	if !found {
		return line
	}
	return style.Render(line)
}

func (a App) renderStatusBar() string {
	var info string
	if a.connected {
		info = fmt.Sprintf("%s  %s  %s",
			titleStyle.Render(a.displayPath()),
			humanize.IBytes(uint64(len(a.contents))),
			plural(core.CountEntries(a.contents), "entry", "entries"),
		)
		if a.follow {
			info += "  " + dimStyle.Render("[FOLLOW]")
		}
	} else {
		info = dimStyle.Render("disconnected")
	}

	left := a.statusMsg
	right := "j/k:scroll g/G:top/bottom f:follow /:search a:add c:clear r:reload q:quit"
	switch a.mode {
	case ModeSearch:
		left = a.search.View()
		right = "enter:apply esc:cancel"
	case ModeConfirmClear:
		right = "y:confirm n:cancel"
	}

	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return info + "\n" + helpStyle.Render(left+strings.Repeat(" ", gap)+right)
}

func (a App) displayPath() string {
	if a.path == "" {
		return "rawlog"
	}
	return truncate(a.path, max(a.width/2, 10))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return "..." + s[len(s)-maxLen+3:]
}
