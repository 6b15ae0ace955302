// Package bench provides benchmarking primitives for the ortprobe bench command.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and output size of a single probe run.
type RunResult struct {
	Index          int
	Cold           bool // true for the first run (cold-start)
	Duration       time.Duration
	OutputElements int
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// The slice must be non-empty.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the per-run durations from runs.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

// RunFunc performs one timed iteration and returns the number of output
// elements it produced.
type RunFunc func(ctx context.Context, index int) (int, error)

// Measure calls fn runs times in sequence, timing each call. It stops at the
// first error or when ctx is done.
func Measure(ctx context.Context, runs int, fn RunFunc) ([]RunResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", runs)
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		n, err := fn(ctx, i)
		elapsed := time.Since(start)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}

		results = append(results, RunResult{
			Index:          i,
			Cold:           i == 0,
			Duration:       elapsed,
			OutputElements: n,
		})
	}

	return results, nil
}

// ---------------------------------------------------------------------------
// Mean latency gate
// ---------------------------------------------------------------------------

// CheckMeanThreshold returns an error if mean exceeds maxMeanMS milliseconds.
// A threshold of 0 disables the gate.
func CheckMeanThreshold(mean time.Duration, maxMeanMS float64) error {
	if maxMeanMS <= 0 {
		return nil
	}
	meanMS := float64(mean) / float64(time.Millisecond)
	if meanMS > maxMeanMS {
		return fmt.Errorf("mean latency %.1fms exceeds threshold %.1fms", meanMS, maxMeanMS)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %10s\n", "Run", "Cold", "MS", "Outputs")
	fmt.Fprintln(sb, strings.Repeat("-", 36))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %10d\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			r.OutputElements,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 36))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (min)\n", "", "", ms(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (mean)\n", "", "", ms(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (max)\n", "", "", ms(stats.Max))

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index          int     `json:"index"`
	Cold           bool    `json:"cold"`
	DurationMS     float64 `json:"duration_ms"`
	OutputElements int     `json:"output_elements"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  ms(stats.Min),
			MeanMS: ms(stats.Mean),
			MaxMS:  ms(stats.Max),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:          r.Index,
			Cold:           r.Cold,
			DurationMS:     ms(r.Duration),
			OutputElements: r.OutputElements,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}
