//go:build (darwin || linux) && !novpx

// Shared helpers for the purego-based native codec binding.

package webcodecs

import (
	"os"
	"path/filepath"
	"unsafe"
)

// goStringFromPtr converts a NUL-terminated C string pointer to a Go string.
// Scanning stops at 1024 bytes as a safety limit.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	length := 0
	for length < 1024 {
		if *(*byte)(unsafe.Pointer(ptr + uintptr(length))) == 0 {
			break
		}
		length++
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod. Used to locate the native library in development
// checkouts.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
