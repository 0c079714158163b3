//go:build !windows

package process

import "fmt"

// pidFromWindow is unsupported off Windows; host windows only exist there.
func pidFromWindow(hwnd uintptr) (int32, error) {
	return 0, fmt.Errorf("%w: window handles are not supported on this platform (hwnd %#x)", ErrNoWindow, hwnd)
}
