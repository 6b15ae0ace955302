package config

import (
	"fmt"
	"strings"

	"github.com/example/ortprobe/internal/ort"
)

// ParseGraphOptimization maps a config value to an engine optimization level.
func ParseGraphOptimization(raw string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disable", "disabled", "none", "off":
		return ort.GraphOptimizationDisableAll, nil
	case "", "basic":
		return ort.GraphOptimizationBasic, nil
	case "extended":
		return ort.GraphOptimizationExtended, nil
	case "all":
		return ort.GraphOptimizationAll, nil
	default:
		return 0, fmt.Errorf("invalid runtime.graph_optimization %q (expected disable|basic|extended|all)", raw)
	}
}

// ParseEngineLogLevel maps a config value to an engine logging level.
func ParseEngineLogLevel(raw string) (ort.LoggingLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "verbose":
		return ort.LoggingLevelVerbose, nil
	case "info":
		return ort.LoggingLevelInfo, nil
	case "", "warning", "warn":
		return ort.LoggingLevelWarning, nil
	case "error":
		return ort.LoggingLevelError, nil
	case "fatal":
		return ort.LoggingLevelFatal, nil
	default:
		return 0, fmt.Errorf("invalid runtime.engine_log_level %q (expected verbose|info|warning|error|fatal)", raw)
	}
}
