package common

import (
	"errors"
	"strings"
	"testing"
)

func TestValidator(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := NewValidator().
			Field("image_limit", 10, NonNegative).
			Field("question", "예산은?", Required, MaxLength(100))
		if err := v.Err(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("collects every failure", func(t *testing.T) {
		v := NewValidator().
			Field("image_limit", -1, NonNegative).
			Field("image_min_size", -5, NonNegative).
			Field("question", "  ", Required)
		if got := len(v.Errors()); got != 3 {
			t.Fatalf("expected 3 errors, got %d", got)
		}
		err := v.Err()
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if !strings.Contains(err.Error(), "image_min_size") {
			t.Errorf("message should name the field: %v", err)
		}
		if ErrorCode(err) != "INVALID_INPUT" {
			t.Errorf("expected INVALID_INPUT code, got %q", ErrorCode(err))
		}
	})

	t.Run("between", func(t *testing.T) {
		rule := Between(1, 10)
		if rule("n", 0) == nil || rule("n", 11) == nil {
			t.Error("expected out-of-range values to fail")
		}
		if rule("n", 5) != nil {
			t.Error("expected 5 to pass")
		}
	})

	t.Run("uuid", func(t *testing.T) {
		if UUID("id", "not-a-uuid") == nil {
			t.Error("expected invalid uuid to fail")
		}
		if UUID("id", "3f2a1c4e-8b7d-4e2f-9a1b-0c9d8e7f6a5b") != nil {
			t.Error("expected valid uuid to pass")
		}
	})
}
