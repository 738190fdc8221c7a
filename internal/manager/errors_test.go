package manager

import (
	"fmt"
	"testing"
)

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   func(error) bool
	}{
		{"too busy", ErrTooBusy("x"), IsTooBusy},
		{"not loaded", ErrModelNotLoaded, IsModelNotLoaded},
		{"dependency", ErrDependencyUnavailable("llama missing"), IsDependencyUnavailable},
		{"settings", invalidSettingsError{problems: []string{"a"}}, IsInvalidSettings},
	}
	for _, c := range cases {
		if !c.is(c.err) {
			t.Fatalf("%s: predicate false for bare error", c.name)
		}
		if !c.is(fmt.Errorf("wrapped: %w", c.err)) {
			t.Fatalf("%s: predicate false for wrapped error", c.name)
		}
		if c.is(errBoom) {
			t.Fatalf("%s: predicate true for unrelated error", c.name)
		}
	}
}

func TestResultLabel(t *testing.T) {
	if resultLabel(nil) != "ok" || resultLabel(tooBusyError{}) != "busy" || resultLabel(ErrModelNotLoaded) != "not_loaded" || resultLabel(errBoom) != "error" {
		t.Fatalf("unexpected labels")
	}
}
