//go:build !windows

package hotkey

import (
	"fmt"
	"runtime"
)

// register reports ErrUnsupported; the daemon keeps capturing on its interval
// and through `snaplapse capture`.
func register(combo Combo) (Registrar, error) {
	return nil, fmt.Errorf("%s on %s: %w", combo, runtime.GOOS, ErrUnsupported)
}
