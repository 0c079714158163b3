//go:build windows

package process

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// pidFromWindow returns the PID owning the top-level window hwnd.
func pidFromWindow(hwnd uintptr) (int32, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(hwnd), &pid); err != nil {
		return 0, fmt.Errorf("GetWindowThreadProcessId(%#x): %w", hwnd, err)
	}
	if pid == 0 {
		return 0, fmt.Errorf("%w: %#x", ErrNoWindow, hwnd)
	}
	return int32(pid), nil
}
