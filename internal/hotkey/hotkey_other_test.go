//go:build !windows

package hotkey_test

import (
	"errors"
	"testing"

	"snaplapse/internal/hotkey"
)

func TestRegisterUnsupported(t *testing.T) {
	combo, err := hotkey.Parse("ctrl+shift+alt+s")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := hotkey.Register(combo); !errors.Is(err, hotkey.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
