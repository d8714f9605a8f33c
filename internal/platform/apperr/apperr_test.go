package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{NotFound("topic %s not found", "t1"), KindNotFound},
		{InvalidInput("bad options", map[string]string{"top_k": "out of range"}), KindInvalidInput},
		{Unavailable("backend down", errors.New("refused")), KindUnavailable},
		{Internal("boom", nil), KindInternal},
		{errors.New("plain"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := NotFound("missing")
	wrapped := fmt.Errorf("loading topic: %w", inner)
	if !IsKind(wrapped, KindNotFound) {
		t.Fatal("wrapped apperr should keep its kind")
	}
}

func TestErrorStringIncludesFields(t *testing.T) {
	err := InvalidInput("invalid match options", map[string]string{
		"top_k":                "must be between 1 and 50, got 100",
		"similarity_threshold": "must be between 0.0 and 1.0, got 1.5",
	})
	msg := err.Error()
	if !strings.Contains(msg, "top_k") || !strings.Contains(msg, "similarity_threshold") {
		t.Fatalf("field details missing from %q", msg)
	}
	// Deterministic field ordering.
	if strings.Index(msg, "similarity_threshold") > strings.Index(msg, "top_k") {
		t.Fatalf("fields should be sorted: %q", msg)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("redis down", cause)
	if !errors.Is(err, cause) {
		t.Fatal("Unavailable should wrap its cause")
	}
}
