//go:build windows

package hotkey

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	modAlt      = 0x0001
	modControl  = 0x0002
	modShift    = 0x0004
	modWin      = 0x0008
	modNoRepeat = 0x4000

	wmHotkey = 0x0312
	wmQuit   = 0x0012

	hotkeyID = 1
)

var (
	user32                 = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey     = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = user32.NewProc("UnregisterHotKey")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

type point struct{ x, y int32 }

type msg struct {
	hwnd     uintptr
	message  uint32
	wParam   uintptr
	lParam   uintptr
	time     uint32
	pt       point
	lPrivate uint32
}

var namedVirtualKeys = map[string]uintptr{
	"space": 0x20, "enter": 0x0D, "tab": 0x09, "esc": 0x1B, "printscreen": 0x2C,
	"insert": 0x2D, "delete": 0x2E, "home": 0x24, "end": 0x23, "pageup": 0x21, "pagedown": 0x22,
}

func virtualKey(key string) (uintptr, bool) {
	if vk, ok := namedVirtualKeys[key]; ok {
		return vk, true
	}
	if len(key) == 1 {
		c := key[0]
		switch {
		case c >= 'a' && c <= 'z':
			return uintptr(c - 'a' + 'A'), true
		case c >= '0' && c <= '9':
			return uintptr(c), true
		}
	}
	if n, ok := functionKey(key); ok && n >= 1 && n <= 24 {
		return uintptr(0x70 + n - 1), true
	}
	return 0, false
}

func nativeModifiers(m Modifier) uintptr {
	var out uintptr = modNoRepeat
	if m&ModCtrl != 0 {
		out |= modControl
	}
	if m&ModShift != 0 {
		out |= modShift
	}
	if m&ModAlt != 0 {
		out |= modAlt
	}
	if m&ModSuper != 0 {
		out |= modWin
	}
	return out
}

// windowsRegistrar owns a locked OS thread running a message loop; hotkey
// messages are delivered to the thread that registered them.
type windowsRegistrar struct {
	combo     Combo
	events    chan Event
	done      chan struct{}
	threadID  uint32
	closeOnce sync.Once
}

func register(combo Combo) (Registrar, error) {
	vk, ok := virtualKey(combo.Key)
	if !ok {
		return nil, fmt.Errorf("hotkey %s: no virtual key for %q", combo, combo.Key)
	}
	r := &windowsRegistrar{
		combo:  combo,
		events: make(chan Event, 1),
		done:   make(chan struct{}),
	}
	ready := make(chan error, 1)
	go r.loop(vk, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return r, nil
}

func (r *windowsRegistrar) loop(vk uintptr, ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	r.threadID = windows.GetCurrentThreadId()
	ret, _, err := procRegisterHotKey.Call(0, hotkeyID, nativeModifiers(r.combo.Modifiers), vk)
	if ret == 0 {
		ready <- fmt.Errorf("register hotkey %s: %w", r.combo, err)
		return
	}
	defer procUnregisterHotKey.Call(0, hotkeyID) //nolint:errcheck
	ready <- nil

	var m msg
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			return
		}
		if m.message == wmHotkey && m.wParam == hotkeyID {
			// Presses arriving while one is still pending coalesce.
			select {
			case r.events <- Event{Combo: r.combo, At: time.Now()}:
			default:
			}
		}
	}
}

func (r *windowsRegistrar) Wait(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case <-r.done:
		return Event{}, errors.New("hotkey listener stopped")
	case ev := <-r.events:
		return ev, nil
	}
}

func (r *windowsRegistrar) Close() error {
	var err error
	r.closeOnce.Do(func() {
		ret, _, callErr := procPostThreadMessageW.Call(uintptr(r.threadID), wmQuit, 0, 0)
		if ret == 0 {
			err = fmt.Errorf("stop hotkey listener: %w", callErr)
			return
		}
		<-r.done
	})
	return err
}
