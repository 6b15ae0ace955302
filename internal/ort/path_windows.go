//go:build windows

package ort

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// encodePath converts p to ORTCHAR_T, which is wchar_t on windows.
func encodePath(p string) (nativePath, error) {
	wide, err := windows.UTF16FromString(p)
	if err != nil {
		return nativePath{}, fmt.Errorf("convert path to UTF-16: %w", err)
	}

	return nativePath{
		// #nosec G103 -- Passes a wchar_t* model path to the engine.
		ptr:  uintptr(unsafe.Pointer(unsafe.SliceData(wide))),
		keep: wide,
	}, nil
}
