package ort

import "unsafe"

// maxCStringLen bounds the NUL scan over engine-owned strings.
const maxCStringLen = 1 << 20

// cStringToGo copies a NUL-terminated C string. A zero pointer yields "".
func cStringToGo(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}

	// #nosec G103 -- Engine-owned NUL-terminated string, read up to the terminator.
	buf := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), maxCStringLen)
	for i := range buf {
		if buf[i] == 0 {
			return string(buf[:i])
		}
	}

	return string(buf)
}

// cString returns a NUL-terminated copy of s. The slice must stay reachable
// for as long as the engine reads the pointer to its first byte.
func cString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)

	return b
}
