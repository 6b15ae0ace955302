package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/ortprobe/internal/bench"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

// ---------------------------------------------------------------------------
// Measure
// ---------------------------------------------------------------------------

func TestMeasure_RecordsEveryRun(t *testing.T) {
	var seen []int
	runs, err := bench.Measure(context.Background(), 3, func(_ context.Context, i int) (int, error) {
		seen = append(seen, i)
		return 10, nil
	})
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}

	if len(runs) != 3 || len(seen) != 3 {
		t.Fatalf("want 3 runs, got %d (calls %v)", len(runs), seen)
	}

	if !runs[0].Cold || runs[1].Cold || runs[2].Cold {
		t.Errorf("only the first run is cold: %+v", runs)
	}

	for i, r := range runs {
		if r.Index != i || r.OutputElements != 10 {
			t.Errorf("run %d: unexpected result %+v", i, r)
		}
	}

	if got := bench.Durations(runs); len(got) != 3 {
		t.Errorf("Durations len = %d; want 3", len(got))
	}
}

func TestMeasure_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	runs, err := bench.Measure(context.Background(), 5, func(_ context.Context, i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return 1, nil
	})

	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}

	if !strings.Contains(err.Error(), "run 3") {
		t.Errorf("error should name the failing run: %v", err)
	}

	if len(runs) != 2 {
		t.Errorf("want 2 completed runs, got %d", len(runs))
	}
}

func TestMeasure_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := bench.Measure(ctx, 3, func(context.Context, int) (int, error) {
		calls++
		return 0, nil
	})

	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Errorf("want canceled with no calls, got err=%v calls=%d", err, calls)
	}
}

func TestMeasure_RejectsZeroRuns(t *testing.T) {
	if _, err := bench.Measure(context.Background(), 0, nil); err == nil {
		t.Error("want error for zero runs")
	}
}

// ---------------------------------------------------------------------------
// Mean latency gate
// ---------------------------------------------------------------------------

func TestMeanThreshold_ExceedsThreshold(t *testing.T) {
	err := bench.CheckMeanThreshold(150*time.Millisecond, 100)
	if err == nil {
		t.Error("want error when mean exceeds threshold")
	}
}

func TestMeanThreshold_BelowThreshold(t *testing.T) {
	err := bench.CheckMeanThreshold(80*time.Millisecond, 100)
	if err != nil {
		t.Errorf("want no error below threshold, got: %v", err)
	}
}

func TestMeanThreshold_ExactlyAtThreshold(t *testing.T) {
	err := bench.CheckMeanThreshold(100*time.Millisecond, 100)
	if err != nil {
		t.Errorf("want no error at exact threshold, got: %v", err)
	}
}

func TestMeanThreshold_DisabledWhenZero(t *testing.T) {
	err := bench.CheckMeanThreshold(time.Hour, 0)
	if err != nil {
		t.Errorf("threshold=0 should disable gate, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, OutputElements: 10},
		{Index: 1, Cold: false, Duration: 500 * time.Millisecond, OutputElements: 10},
	}
	stats := bench.ComputeStats(bench.Durations(runs))

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "outputs", "(mean)", "650.0"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, OutputElements: 10},
	}
	stats := bench.ComputeStats([]time.Duration{800 * time.Millisecond})

	var buf bytes.Buffer
	bench.FormatJSON(runs, stats, &buf)

	var out struct {
		Runs []struct {
			OutputElements int `json:"output_elements"`
		} `json:"runs"`
		Stats struct {
			MeanMS float64 `json:"mean_ms"`
		} `json:"stats"`
	}

	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}

	if len(out.Runs) != 1 || out.Runs[0].OutputElements != 10 || out.Stats.MeanMS != 800 {
		t.Errorf("unexpected JSON content: %s", buf.String())
	}
}
