package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain", errors.New("boom"), KindUnknown},
		{"direct", NotFound("project %d", 4), KindNotFound},
		{"wrapped by fmt", fmt.Errorf("save project: %w", Wrap(cause, KindPersistence, "update failed")), KindPersistence},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, KindPersistence, "update failed")

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable with errors.Is")
	}
	if !Is(err, KindPersistence) {
		t.Fatal("expected persistence kind")
	}
	if err.Error() != "persistence: update failed: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
