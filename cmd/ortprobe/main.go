package main

import (
	"fmt"
	"os"

	"github.com/example/ortprobe/internal/onnx"
)

func main() {
	err := NewRootCmd().Execute()

	shutdownErr := onnx.Shutdown()
	if shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(exitCode(err))
	}
}

// exitCode maps failures before the session was open to -1 and everything
// else to 1.
func exitCode(err error) int {
	if onnx.IsSetupError(err) {
		return -1
	}

	return 1
}
