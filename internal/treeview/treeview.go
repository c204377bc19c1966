// Package treeview renders the visible rows of a section view for a terminal.
package treeview

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lexicon-labs/lexicon-cli/internal/sections"
)

const (
	collapsedMarker = "▸"
	expandedMarker  = "▾"
	leafMarker      = " "
	selectedMarker  = " *"
	indent          = "  "
)

var (
	rootStyle     = lipgloss.NewStyle().Bold(true)
	keyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#7aa2f7"))
	markerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1a1b26")).
			Background(lipgloss.Color("#89b4fa"))
)

// Options control rendering.
type Options struct {
	// Plain disables ANSI styling.
	Plain bool
}

// Line renders a single row without styling. The selected row ends with
// an asterisk.
func Line(row sections.Row, expanded, selected bool) string {
	line := strings.Repeat(indent, row.Depth) + marker(row.Node, expanded) + " " + text(row.Node)
	if selected {
		line += selectedMarker
	}
	return line
}

// Render returns the visible rows of v, one per line.
func Render(v *sections.View, opts Options) string {
	var b strings.Builder
	for _, row := range v.Visible() {
		expanded := v.Expanded(row.Node.SectionNumber)
		selected := v.IsSelected(row.Node)
		if opts.Plain {
			b.WriteString(Line(row, expanded, selected))
		} else {
			b.WriteString(styled(row, expanded, selected))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Write renders v to w.
func Write(w io.Writer, v *sections.View, opts Options) error {
	_, err := io.WriteString(w, Render(v, opts))
	return err
}

func styled(row sections.Row, expanded, selected bool) string {
	prefix := strings.Repeat(indent, row.Depth) + markerStyle.Render(marker(row.Node, expanded)) + " "
	if selected {
		return prefix + selectedStyle.Render(text(row.Node))
	}
	body := keyStyle.Render(row.Node.SectionNumber+".") + " " + row.Node.Label
	if row.Depth == 0 {
		body = rootStyle.Render(body)
	}
	return prefix + body
}

func marker(n sections.TreeNode, expanded bool) string {
	switch {
	case len(n.Children) == 0:
		return leafMarker
	case expanded:
		return expandedMarker
	default:
		return collapsedMarker
	}
}

func text(n sections.TreeNode) string {
	return n.SectionNumber + ". " + n.Label
}
