package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	keyStyle   = lipgloss.NewStyle().Faint(true).Width(10)
	valueStyle = lipgloss.NewStyle()
	tagStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

type kv struct{ k, v string }

func printSummary(w io.Writer, head string, rows []kv) {
	var b strings.Builder
	b.WriteString(headStyle.Render(head))
	b.WriteString("\n")
	for _, r := range rows {
		if r.v == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(keyStyle.Render(r.k))
		b.WriteString(valueStyle.Render(r.v))
		b.WriteString("\n")
	}
	fmt.Fprint(w, b.String())
}
