package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorIsMatchesByType(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("answering: %w", NewGenerationError("huggingface", "request failed", cause))

	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected errors.Is(err, ErrGeneration)")
	}
	if errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("generation error must not match ErrEmbeddingUnavailable")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}

	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if typed.Component != "huggingface" {
		t.Errorf("Component = %q, want huggingface", typed.Component)
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want []string
	}{
		{
			name: "config",
			err:  NewConfigError("chunker.overlap", "must be smaller than chunk_size"),
			want: []string{"config", "chunker.overlap", "must be smaller"},
		},
		{
			name: "with status",
			err:  &Error{Type: ErrTypeGeneration, Component: "openai", Message: "bad gateway", StatusCode: 502},
			want: []string{"openai", "bad gateway", "status 502"},
		},
		{
			name: "type only",
			err:  &Error{Type: ErrTypeIndex},
			want: []string{"index"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(msg, w) {
					t.Errorf("Error() = %q, missing %q", msg, w)
				}
			}
		})
	}
}

func TestUserInputErrorsAreDistinct(t *testing.T) {
	malformed := NewMalformedCommand("report x")
	outOfRange := NewOutOfRangeReport(9, 3)

	if errors.Is(malformed, ErrOutOfRangeReport) || errors.Is(outOfRange, ErrMalformedCommand) {
		t.Fatalf("malformed and out-of-range errors must not be conflated")
	}
	if !errors.Is(malformed, ErrMalformedCommand) || !errors.Is(outOfRange, ErrOutOfRangeReport) {
		t.Fatalf("errors must match their own sentinels")
	}
}

func TestResultDisplay(t *testing.T) {
	ok := Result{Text: "Filters last six months."}
	if ok.Display() != "Filters last six months." {
		t.Errorf("Display() = %q", ok.Display())
	}

	failed := Result{Err: NewGenerationError("openai", "timeout", nil)}
	got := failed.Display()
	if !strings.HasPrefix(got, "An error occurred: ") || !strings.Contains(got, "timeout") {
		t.Errorf("Display() = %q, want flattened error", got)
	}
}
