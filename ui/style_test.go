package ui

import (
	"strings"
	"testing"

	"mod-catalog/db"
)

func TestStatusKeepsText(t *testing.T) {
	for _, s := range db.AllStatuses {
		if got := Status(s); !strings.Contains(got, string(s)) {
			t.Errorf("Status(%s) = %q, lost its text", s, got)
		}
	}
	if got := Status("archived"); got != "archived" {
		t.Errorf("expected unknown status to render plain, got %q", got)
	}
}

func TestEveryStatusHasAColor(t *testing.T) {
	for _, s := range db.AllStatuses {
		if _, ok := statusColors[s]; !ok {
			t.Errorf("no color for status %s", s)
		}
	}
}
