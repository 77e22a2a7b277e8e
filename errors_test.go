package emb3d

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zero-day-ai/emb3d/enrich"
	"github.com/zero-day-ai/emb3d/reconcile"
)

// TestConvertErrorError verifies the Error() method formatting.
func TestConvertErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *ConvertError
		want string
	}{
		{
			name: "basic error without context",
			err: &ConvertError{
				Op:   "Converter.ingest",
				Kind: KindInput,
				Err:  reconcile.ErrMissingKey,
			},
			want: "emb3d: Converter.ingest (input): " + reconcile.ErrMissingKey.Error(),
		},
		{
			name: "error with nil underlying error",
			err: &ConvertError{
				Op:   "Converter.assemble",
				Kind: KindValidation,
			},
			want: "emb3d: Converter.assemble: validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertErrorErrorWithContext(t *testing.T) {
	err := &ConvertError{
		Op:      "Converter.enrich",
		Kind:    KindNotFound,
		Err:     enrich.ErrTargetNotFound,
		Context: map[string]any{"page": "threats/TID-999.html"},
	}

	got := err.Error()
	for _, want := range []string{"Converter.enrich", "not_found", "TID-999.html"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

// TestConvertErrorUnwrap verifies the Unwrap() method.
func TestConvertErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := &ConvertError{Op: "Converter.link", Kind: KindInternal, Err: underlyingErr}

	if unwrapped := err.Unwrap(); unwrapped != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlyingErr)
	}

	errNil := &ConvertError{Op: "Converter.link", Kind: KindInternal}
	if unwrapped := errNil.Unwrap(); unwrapped != nil {
		t.Errorf("Unwrap() with nil Err = %v, want nil", unwrapped)
	}
}

// TestConvertErrorIs verifies the Is() method and errors.Is() compatibility.
func TestConvertErrorIs(t *testing.T) {
	base := &ConvertError{
		Op:   "Converter.enrich",
		Kind: KindNotFound,
		Err:  fmt.Errorf("TID-999: %w", enrich.ErrTargetNotFound),
	}

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{name: "matches wrapped sentinel", target: enrich.ErrTargetNotFound, want: true},
		{name: "matches by kind", target: &ConvertError{Kind: KindNotFound}, want: true},
		{name: "matches by kind and op", target: &ConvertError{Op: "Converter.enrich", Kind: KindNotFound}, want: true},
		{name: "different op", target: &ConvertError{Op: "Converter.link", Kind: KindNotFound}, want: false},
		{name: "different kind", target: &ConvertError{Kind: KindInput}, want: false},
		{name: "different sentinel", target: reconcile.ErrMissingKey, want: false},
		{name: "nil target", target: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(base, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestConvertErrorAs verifies errors.As() through an outer wrap.
func TestConvertErrorAs(t *testing.T) {
	original := NewIOError("Converter.Convert", errors.New("disk full")).WithContext(map[string]any{
		"output": "OUT/out_stix.json",
	})
	wrapped := fmt.Errorf("run: %w", original)

	var convErr *ConvertError
	if !errors.As(wrapped, &convErr) {
		t.Fatal("errors.As() failed to extract ConvertError")
	}
	if convErr.Kind != KindIO {
		t.Errorf("Kind = %q, want %q", convErr.Kind, KindIO)
	}
	if convErr.Context["output"] != "OUT/out_stix.json" {
		t.Errorf("Context[output] = %v", convErr.Context["output"])
	}
}

// TestConvertErrorWithContext verifies the original error is left untouched.
func TestConvertErrorWithContext(t *testing.T) {
	original := NewInputError("Converter.ingest", reconcile.ErrMissingKey)

	withCtx := original.WithContext(map[string]any{"source": "threats.json"})
	if original.Context != nil {
		t.Error("original error Context was modified")
	}

	withMore := withCtx.WithContext(map[string]any{"record": 3})
	if withMore.Context["source"] != "threats.json" {
		t.Error("source context was lost")
	}
	if withMore.Context["record"] != 3 {
		t.Error("record context was not added")
	}
	if _, ok := withCtx.Context["record"]; ok {
		t.Error("WithContext mutated the receiver's context")
	}
}

// TestNewErrorFunctions verifies all the New*Error() constructor functions.
func TestNewErrorFunctions(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(string, error) *ConvertError
		wantKind string
	}{
		{"NewInputError", NewInputError, KindInput},
		{"NewNotFoundError", NewNotFoundError, KindNotFound},
		{"NewValidationError", NewValidationError, KindValidation},
		{"NewIOError", NewIOError, KindIO},
		{"NewConfigurationError", NewConfigurationError, KindConfiguration},
		{"NewInternalError", NewInternalError, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			underlyingErr := errors.New("test error")
			err := tt.fn("Test.Operation", underlyingErr)

			if err.Op != "Test.Operation" {
				t.Errorf("Op = %q, want Test.Operation", err.Op)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.wantKind)
			}
			if !errors.Is(err, underlyingErr) {
				t.Error("underlying error not preserved")
			}
		})
	}
}

func BenchmarkConvertErrorError(b *testing.B) {
	err := NewNotFoundError("Converter.enrich", enrich.ErrTargetNotFound).WithContext(map[string]any{
		"page": "threats/TID-101.html",
	})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}
