package types

import "testing"

func TestRunProgress(t *testing.T) {
	tests := []struct {
		status string
		want   int
	}{
		{RunStatusPending, 10},
		{RunStatusRasterizing, 10},
		{RunStatusExtractingText, 45},
		{RunStatusGenerating, 70},
		{RunStatusRendering, 90},
		{RunStatusReady, 100},
		{RunStatusFailed, 0},
		{"unknown", 0},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := RunProgress(tt.status); got != tt.want {
				t.Fatalf("RunProgress(%q) = %d, want %d", tt.status, got, tt.want)
			}
		})
	}
}

func TestRunProgressMonotonicOverOrder(t *testing.T) {
	last := -1
	for _, status := range RunStatusOrder {
		progress := RunProgress(status)
		if progress < last {
			t.Fatalf("progress regressed at %q: %d < %d", status, progress, last)
		}
		last = progress
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for _, status := range []string{RunStatusReady, RunStatusFailed} {
		if !RunStatusTerminal(status) {
			t.Fatalf("%q should be terminal", status)
		}
	}
	for _, status := range []string{RunStatusPending, RunStatusRasterizing, RunStatusExtractingText, RunStatusGenerating, RunStatusRendering} {
		if RunStatusTerminal(status) {
			t.Fatalf("%q should not be terminal", status)
		}
	}
}
