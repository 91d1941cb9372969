//go:build windows

package paste

import (
	"fmt"
	"strconv"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32              = windows.NewLazySystemDLL("user32.dll")
	sendInput           = user32.NewProc("SendInput")
	mapVirtualKeyW      = user32.NewProc("MapVirtualKeyW")
	setForegroundWindow = user32.NewProc("SetForegroundWindow")
)

const (
	inputKeyboard  = 1
	keyeventfKeyup = 0x0002
	mapvkVkToVsc   = 0
	vkControl      = 0x11
	vkV            = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // pads to the size of the C INPUT union
}

type sendInputInjector struct{}

// New returns the Windows injector.
func New() Injector { return sendInputInjector{} }

// InjectPaste brings target, a window handle, to the foreground and sends
// Ctrl+V with scan codes so elevated applications accept it.
func (sendInputInjector) InjectPaste(target string) error {
	if target != "" {
		hwnd, err := strconv.ParseUint(target, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid window handle %q", target)
		}
		setForegroundWindow.Call(uintptr(hwnd))
		time.Sleep(50 * time.Millisecond)
	}

	ctrlScan, _, _ := mapVirtualKeyW.Call(vkControl, mapvkVkToVsc)
	vScan, _, _ := mapVirtualKeyW.Call(vkV, mapvkVkToVsc)
	key := func(vk uint16, scan uintptr, flags uint32) input {
		return input{inputType: inputKeyboard, ki: keyboardInput{wVk: vk, wScan: uint16(scan), dwFlags: flags}}
	}
	inputs := []input{
		key(vkControl, ctrlScan, 0),
		key(vkV, vScan, 0),
		key(vkV, vScan, keyeventfKeyup),
		key(vkControl, ctrlScan, keyeventfKeyup),
	}

	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if ret == 0 {
		return fmt.Errorf("SendInput failed: %w", err)
	}
	return nil
}
