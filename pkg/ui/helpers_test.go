package ui

import (
	"strings"
	"testing"
	"time"
)

func TestFormatTimeRel(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now, "now"},
		{now.Add(-30 * time.Second), "now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
		{now.Add(-10 * 24 * time.Hour), "1w ago"},
		{now.Add(-70 * 24 * time.Hour), "2mo ago"},
	}
	for _, tt := range tests {
		if got := FormatTimeRel(tt.t); got != tt.want {
			t.Errorf("FormatTimeRel(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		w    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"this is far too long", 10, "this is f…"},
		{"anything", 0, ""},
		{"anything", 1, "…"},
		{"日本語テキスト", 7, "日本語…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.w); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.w, got, tt.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("abcdef", 3); got != "abcdef" {
		t.Errorf("padRight should not truncate, got %q", got)
	}
}

func TestBar(t *testing.T) {
	if got := bar(0.5, 10); strings.Count(got, "█") != 5 || strings.Count(got, "░") != 5 {
		t.Errorf("bar(0.5, 10) = %q", got)
	}
	if got := bar(-1, 4); strings.Count(got, "█") != 0 {
		t.Errorf("bar clamps below 0, got %q", got)
	}
	if got := bar(2, 4); strings.Count(got, "█") != 4 {
		t.Errorf("bar clamps above 1, got %q", got)
	}
	if got := bar(0.3, 0); got != "" {
		t.Errorf("bar with zero width = %q", got)
	}
}
