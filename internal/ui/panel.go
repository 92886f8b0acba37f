package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/justinpbarnett/devwatch/internal/ui/styles"
)

const (
	cornerTL = "╭"
	cornerTR = "╮"
	cornerBL = "╰"
	cornerBR = "╯"
	horizBar = "─"
	vertBar  = "│"
)

// renderPanel draws content inside a rounded border of exactly width x
// height cells: ╭─ title ─╮ on top, [k]ey hints along the bottom.
func renderPanel(title, content string, hints []key.Binding, width, height int) string {
	if width < 4 || height < 2 {
		return ""
	}
	inner := width - 2

	lines := []string{}
	if content != "" {
		lines = strings.Split(content, "\n")
	}
	if len(lines) > height-2 {
		lines = lines[:height-2]
	}
	for len(lines) < height-2 {
		lines = append(lines, "")
	}

	bs := styles.BorderStyle
	crop := lipgloss.NewStyle().MaxWidth(inner)

	var b strings.Builder
	b.WriteString(edge(cornerTL, cornerTR, styles.TitleStyle.Render(title), inner))
	for _, line := range lines {
		if lipgloss.Width(line) > inner {
			line = crop.Render(line)
		}
		pad := inner - lipgloss.Width(line)
		b.WriteString("\n" + bs.Render(vertBar) + line + strings.Repeat(" ", max(pad, 0)) + bs.Render(vertBar))
	}
	b.WriteString("\n" + edge(cornerBL, cornerBR, renderHints(hints, inner-3), inner))
	return b.String()
}

// edge renders a horizontal border with an optional label after "─ ".
func edge(left, right, label string, inner int) string {
	bs := styles.BorderStyle
	if label == "" {
		return bs.Render(left + strings.Repeat(horizBar, inner) + right)
	}
	fill := inner - 3 - lipgloss.Width(label)
	if fill < 0 {
		return bs.Render(left + strings.Repeat(horizBar, inner) + right)
	}
	return bs.Render(left+horizBar+" ") + label + bs.Render(" "+strings.Repeat(horizBar, fill)+right)
}

// renderHints renders bindings as [w]ait  [y]ank logs, dropping any that do
// not fit in maxWidth.
func renderHints(hints []key.Binding, maxWidth int) string {
	var parts []string
	used := 0
	for _, h := range hints {
		help := h.Help()
		s := styles.KeyStyle.Render("["+help.Key+"]") + styles.KeyLabelStyle.Render(help.Desc)
		w := lipgloss.Width(s)
		if len(parts) > 0 {
			w += 2
		}
		if used+w > maxWidth {
			break
		}
		parts = append(parts, s)
		used += w
	}
	return strings.Join(parts, "  ")
}
