package repository

import (
	"strings"
	"testing"
)

func TestCancelPendingForTask_LeavesStartedChecks(t *testing.T) {
	if !strings.Contains(cancelPendingForTaskSQL, "status = 'pending'") {
		t.Fatalf("expected cancellation limited to pending checks, got %q", cancelPendingForTaskSQL)
	}
	if strings.Contains(cancelPendingForTaskSQL, "in_progress") {
		t.Fatalf("in-progress checks must not be cancelled: %q", cancelPendingForTaskSQL)
	}
}

func TestMarkOverdue_GuardsFinishedAndNotified(t *testing.T) {
	for _, guard := range []string{
		"status IN ('pending', 'in_progress')",
		"overdue_notified_at IS NULL",
		"RETURNING status",
	} {
		if !strings.Contains(markOverdueSQL, guard) {
			t.Errorf("expected %q in mark overdue statement", guard)
		}
	}
}
