package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestTableRender(t *testing.T) {
	tbl := newTable("ID", "STATUS")
	tbl.addRow("a1", "pending")
	tbl.addRow("b22", "completed")

	var out bytes.Buffer
	if err := tbl.render(&out); err != nil {
		t.Fatalf("render failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, divider and 2 rows, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "ID") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("header line = %q", lines[0])
	}
	if strings.Trim(lines[1], "-") != "" {
		t.Errorf("divider line = %q", lines[1])
	}
	if !strings.Contains(lines[3], "b22") || !strings.Contains(lines[3], "completed") {
		t.Errorf("last row = %q", lines[3])
	}
	if len(lines[2]) != len(lines[3]) {
		t.Errorf("rows are not aligned: %q vs %q", lines[2], lines[3])
	}
}
