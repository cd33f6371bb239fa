// Package ui holds the terminal styles shared by the CLI commands.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mindwtr/mindwtr/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	projectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

// statusGlyphs mirror the app's list rendering.
var statusGlyphs = map[model.TaskStatus]string{
	model.StatusInbox:     "•",
	model.StatusNext:      "→",
	model.StatusWaiting:   "⏳",
	model.StatusSomeday:   "~",
	model.StatusReference: "§",
	model.StatusDone:      "✓",
	model.StatusArchived:  "▪",
}

// Header renders a section heading.
func Header(text string) string {
	return headerStyle.Render(text)
}

// Muted renders de-emphasized text.
func Muted(text string) string {
	return mutedStyle.Render(text)
}

// TaskLine renders one task for list output: glyph, short id, title
// and schedule hints.
func TaskLine(t *model.Task, projectTitle string) string {
	glyph, ok := statusGlyphs[t.Status]
	if !ok {
		glyph = "•"
	}

	title := titleStyle.Render(t.Title)
	if t.Status == model.StatusDone || t.Status == model.StatusArchived {
		title = doneStyle.Render(t.Title)
	}

	var sb strings.Builder
	if t.IsFocusedToday {
		sb.WriteString(focusStyle.Render("★ "))
	}
	sb.WriteString(glyph)
	sb.WriteString(" ")
	sb.WriteString(idStyle.Render(ShortID(t.ID)))
	sb.WriteString(" ")
	sb.WriteString(title)
	if projectTitle != "" {
		sb.WriteString(" ")
		sb.WriteString(projectStyle.Render("[" + projectTitle + "]"))
	}
	if t.DueDate != "" {
		sb.WriteString(" ")
		sb.WriteString(dueStyle.Render("due " + t.DueDate))
	}
	if t.PushCount > 0 {
		sb.WriteString(" ")
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("(pushed ×%d)", t.PushCount)))
	}
	return sb.String()
}

// ProjectLine renders one project for list output.
func ProjectLine(p *model.Project, taskCount int) string {
	var sb strings.Builder
	if p.IsFocused {
		sb.WriteString(focusStyle.Render("★ "))
	}
	sb.WriteString(idStyle.Render(ShortID(p.ID)))
	sb.WriteString(" ")
	sb.WriteString(titleStyle.Render(p.Title))
	sb.WriteString(" ")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("(%s, %d tasks)", p.Status, taskCount)))
	return sb.String()
}

// ShortID shortens a UUID to its first segment for display.
func ShortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
