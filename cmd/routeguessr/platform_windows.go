//go:build windows

package main

import (
	"os"
	"os/signal"
	"syscall"
	"unsafe"
)

var (
	kernel32           = syscall.NewLazyDLL("kernel32.dll")
	procGetConsoleMode = kernel32.NewProc("GetConsoleMode")
	procSetConsoleMode = kernel32.NewProc("SetConsoleMode")
	procGetStdHandle   = kernel32.NewProc("GetStdHandle")
)

const (
	stdOutputHandle                 = ^uintptr(0) - 10 + 1 // STD_OUTPUT_HANDLE = -11
	stdErrorHandle                  = ^uintptr(0) - 11 + 1 // STD_ERROR_HANDLE = -12
	enableVirtualTerminalProcessing = 0x0004
)

// enableANSI turns on escape code processing for stdout and stderr, where
// the progress spinner and log lines go.
func enableANSI() {
	for _, std := range []uintptr{stdOutputHandle, stdErrorHandle} {
		handle, _, _ := procGetStdHandle.Call(std)
		if handle == 0 {
			continue
		}
		var mode uint32
		if r, _, _ := procGetConsoleMode.Call(handle, uintptr(unsafe.Pointer(&mode))); r == 0 {
			continue
		}
		procSetConsoleMode.Call(handle, uintptr(mode|enableVirtualTerminalProcessing))
	}
}

func registerSignals(ch chan<- os.Signal) {
	// Windows only supports SIGINT (Ctrl+C); SIGTERM is not available.
	signal.Notify(ch, syscall.SIGINT)
}
