package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "nil error", err: nil, expected: ""},
		{name: "simple error", err: errors.New("something went wrong"), expected: "Error: something went wrong"},
		{name: "wrapped sentinel", err: fmt.Errorf("loading task abc: %w", ErrTaskNotFound), expected: "Error: loading task abc: task not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Format(tt.err); result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatf(t *testing.T) {
	if got := Formatf("unknown period %q", "evening"); got != `Error: unknown period "evening"` {
		t.Errorf("Formatf() = %q", got)
	}
}

func TestSentinelsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("saving state: %w", ErrStateConflict)
	if !errors.Is(err, ErrStateConflict) {
		t.Error("errors.Is(wrapped, ErrStateConflict) = false, want true")
	}
	if errors.Is(err, ErrTaskNotFound) {
		t.Error("errors.Is(wrapped, ErrTaskNotFound) = true, want false")
	}
}
