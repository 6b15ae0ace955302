package model

import (
	"fmt"
	"sort"
)

// PinnedModel is a well-known model the download command can fetch by name.
type PinnedModel struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

var pinnedModels = map[string]PinnedModel{
	"mnist": {
		Name:     "mnist",
		Source:   "https://github.com/onnx/models/raw/main/validated/vision/classification/mnist/model/mnist-12.onnx",
		Filename: "mnist_model.onnx",
		// Resolved on first download and then persisted into the local lock
		// manifest.
		SHA256: "",
	},
	"mnist-8": {
		Name:     "mnist-8",
		Source:   "https://github.com/onnx/models/raw/main/validated/vision/classification/mnist/model/mnist-8.onnx",
		Filename: "mnist-8.onnx",
		SHA256:   "",
	},
}

// LookupPinned returns the pinned model called name.
func LookupPinned(name string) (PinnedModel, error) {
	m, ok := pinnedModels[name]
	if !ok {
		return PinnedModel{}, fmt.Errorf("no pinned model %q (known: %v)", name, PinnedNames())
	}

	return m, nil
}

// PinnedNames lists the pinned model names in order.
func PinnedNames() []string {
	names := make([]string, 0, len(pinnedModels))
	for n := range pinnedModels {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}
