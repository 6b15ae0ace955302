package ort

import "runtime"

// nativePath is a model path in the engine's ORTCHAR_T encoding. The backend
// is chosen at build time: path_unix.go or path_windows.go.
type nativePath struct {
	ptr  uintptr
	keep any
}

// release marks the backing buffer as no longer needed by the engine.
func (p nativePath) release() {
	runtime.KeepAlive(p.keep)
}
