//go:build !windows

package ort

import (
	"fmt"
	"strings"
	"unsafe"
)

// encodePath converts p to ORTCHAR_T, which is char on unix: the UTF-8 bytes
// followed by a NUL. The returned buffer backs the pointer and must be kept
// alive until the engine call returns.
func encodePath(p string) (nativePath, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return nativePath{}, fmt.Errorf("path %q contains a NUL byte", p)
	}

	b := cString(p)

	return nativePath{
		// #nosec G103 -- Passes a NUL-terminated path to the engine.
		ptr:  uintptr(unsafe.Pointer(unsafe.SliceData(b))),
		keep: b,
	}, nil
}
