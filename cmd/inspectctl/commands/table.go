package commands

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// table renders rows as padded columns separated by "|".
type table struct {
	headers []string
	rows    [][]string
}

func newTable(headers ...string) *table {
	return &table{headers: headers}
}

func (t *table) addRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// render writes the table styled for w. Non-terminal writers get plain text.
func (t *table) render(w io.Writer) error {
	r := lipgloss.NewRenderer(w)
	headerStyle := r.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	sepStyle := r.NewStyle().Faint(true)

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}
	total := len(widths) - 1
	for i := range widths {
		widths[i] += 2
		total += widths[i]
	}

	var sb strings.Builder
	line := func(cells []string, style lipgloss.Style) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			sb.WriteString(style.Width(widths[i]).Render(cell))
			if i < len(widths)-1 {
				sb.WriteString(sepStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}

	line(t.headers, headerStyle)
	sb.WriteString(sepStyle.Render(strings.Repeat("-", max(total, 0))) + "\n")
	for _, row := range t.rows {
		line(row, cellStyle)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
