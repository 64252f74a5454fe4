// Package tui is a two-pane terminal browser for a daily capsule.
package tui

import (
	"fmt"
	"strings"

	"civicbriefs/internal/core"
	"civicbriefs/internal/trends"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the capsule being browsed and the cursor position.
type Model struct {
	capsule     *core.Capsule
	selectedIdx int
	width       int
	height      int
	quitting    bool
}

// NewModel returns a browser positioned on the first item.
func NewModel(c *core.Capsule) Model {
	if c == nil {
		c = &core.Capsule{}
	}
	return Model{capsule: c, width: 100}
}

// Selected returns the index of the highlighted item.
func (m Model) Selected() int {
	return m.selectedIdx
}

// Init is the first command that will be run. We don't need any.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses and window resizes.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.capsule.Items)-1 {
				m.selectedIdx++
			}
		case "home", "g":
			m.selectedIdx = 0
		case "end", "G":
			m.selectedIdx = max(0, len(m.capsule.Items)-1)
		}
	}

	return m, nil
}

// View renders the item list beside the selected item's detail.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	paneWidth := max(20, m.width/2-5)
	docStyle := lipgloss.NewStyle().Margin(1, 2)
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)
	cursorStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	var list strings.Builder
	list.WriteString(fmt.Sprintf("Daily Capsule - %s\n\n", m.capsule.Date))
	if len(m.capsule.Items) == 0 {
		list.WriteString("No news mapped for this day yet.")
	}
	for i, item := range m.capsule.Items {
		line := fmt.Sprintf("  %d. %s", i+1, item.Title)
		if i == m.selectedIdx {
			line = cursorStyle.Render(fmt.Sprintf("> %d. %s", i+1, item.Title))
		}
		list.WriteString(line + "\n")
	}

	var detail strings.Builder
	if m.selectedIdx < len(m.capsule.Items) {
		item := m.capsule.Items[m.selectedIdx]
		detail.WriteString(lipgloss.NewStyle().Bold(true).Render(item.Title) + "\n\n")
		for _, t := range item.Topics {
			detail.WriteString(fmt.Sprintf("%s (%.2f)\n", trends.Label(t), t.Score))
		}
		if item.Summary != "" {
			detail.WriteString("\n" + item.Summary + "\n")
		}
		if len(item.Pyqs) > 0 {
			detail.WriteString("\nRelated PYQs:\n")
			for _, q := range item.Pyqs {
				detail.WriteString(fmt.Sprintf("• %s (%s %d)\n", q.Question, q.Paper, q.Year))
			}
		}
		detail.WriteString("\n" + mutedStyle.Render(item.URL))
	}

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, listStyle.Render(list.String()), detailStyle.Render(detail.String()))
	help := mutedStyle.Render("\n[↑/k] Up | [↓/j] Down | [g/G] First/Last | [q] Quit")

	return docStyle.Render(mainContent + help)
}

// Run starts the browser in the alternate screen and blocks until it quits.
func Run(c *core.Capsule) error {
	p := tea.NewProgram(NewModel(c), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
