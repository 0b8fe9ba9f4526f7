package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/rodysim/rody/pkg/cache"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/observability"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sink"
)

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  sink.Format
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"csv", false},
		{"table", true},
		{"TEXT", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{Scenario: scenario.Default()}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}
	if opts.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", opts.Format, DefaultFormat)
	}
	if opts.Logger == nil {
		t.Error("Logger should default to a discard logger")
	}

	bad := Options{Scenario: scenario.Default()}
	bad.Scenario.Timeline.Steps = 0
	if err := bad.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidTimeline) {
		t.Errorf("zero steps: got %v, want INVALID_TIMELINE", err)
	}

	strict := Options{Scenario: scenario.Default(), Strict: true}
	strict.Scenario.Block.Lengths = [3]float64{1, 1, 0}
	if err := strict.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidGeometry) {
		t.Errorf("strict flat block: got %v, want INVALID_GEOMETRY", err)
	}
}

func TestExecuteDefaultScenario(t *testing.T) {
	r := NewRunner(nil, nil, log.New(&bytes.Buffer{}))
	res, err := r.Execute(context.Background(), Options{Scenario: scenario.Default()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := " -0.100  0.000  0.000  -1.000  0.000  0.000 \n"
	if string(res.Output) != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	if res.Summary.Steps != 1 || res.Stats.Steps != 1 {
		t.Errorf("Steps = %d/%d, want 1", res.Summary.Steps, res.Stats.Steps)
	}
	if res.CacheHit {
		t.Error("NullCache run should not hit")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
}

func TestExecuteFormats(t *testing.T) {
	s := scenario.Default()
	s.Timeline.Max = 0.2
	s.Timeline.Steps = 2
	s.Output.Select = "px"

	tests := []struct {
		format sink.Format
		want   string
	}{
		{sink.FormatText, " -0.100 \n -0.200 \n"},
		{sink.FormatCSV, "index,px\n1,-0.100\n2,-0.200\n"},
	}
	r := NewRunner(nil, nil, nil)
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			res, err := r.Execute(context.Background(), Options{Scenario: s, Format: tt.format})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if string(res.Output) != tt.want {
				t.Errorf("Output = %q, want %q", res.Output, tt.want)
			}
		})
	}

	res, err := r.Execute(context.Background(), Options{Scenario: s, Format: sink.FormatJSON})
	if err != nil {
		t.Fatalf("Execute json: %v", err)
	}
	if lines := strings.Count(string(res.Output), "\n"); lines != 2 {
		t.Errorf("json lines = %d, want 2", lines)
	}
}

func TestExecuteCaches(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	counters := observability.NewCounters()
	observability.SetCacheHooks(counters)
	defer observability.Reset()

	r := NewRunner(c, nil, nil)
	opts := Options{Scenario: scenario.Default()}

	first, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Error("first run should miss")
	}

	second, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit {
		t.Error("second run should hit")
	}
	if !bytes.Equal(first.Output, second.Output) {
		t.Errorf("cached output %q differs from %q", second.Output, first.Output)
	}
	if second.Summary.Steps != first.Summary.Steps {
		t.Errorf("cached summary steps = %d, want %d", second.Summary.Steps, first.Summary.Steps)
	}

	refreshed, err := r.Execute(ctx, Options{Scenario: scenario.Default(), Refresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.CacheHit {
		t.Error("refresh should bypass the cache")
	}

	changed := scenario.Default()
	changed.Output.Decimals = 1
	other, err := r.Execute(ctx, Options{Scenario: changed})
	if err != nil {
		t.Fatal(err)
	}
	if other.CacheHit || other.Key == first.Key {
		t.Error("different decimals should use a different key")
	}

	s := counters.Snapshot()
	if s.CacheHits != 1 || s.CacheMisses != 2 {
		t.Errorf("cache hooks = %d hits, %d misses; want 1, 2", s.CacheHits, s.CacheMisses)
	}
}

func TestExecuteDoesNotCacheNonFiniteScenarios(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(c, nil, nil)

	nan := scenario.Default()
	nan.Block.MassDensity = math.NaN()

	inf := scenario.Default()
	inf.Block.MassDensity = math.Inf(1)
	inf.Block.Velocity = [3]float64{5, 5, 5}

	first, err := r.Execute(ctx, Options{Scenario: nan})
	if err != nil {
		t.Fatalf("NaN density: %v", err)
	}
	if first.Key != "" {
		t.Errorf("Key = %q, want none for a NaN scenario", first.Key)
	}
	if want := " -0.100  0.000  0.000  -1.000  0.000  0.000 \n"; string(first.Output) != want {
		t.Errorf("NaN density output = %q, want %q", first.Output, want)
	}

	for i := range 2 {
		res, err := r.Execute(ctx, Options{Scenario: inf})
		if err != nil {
			t.Fatalf("infinite density run %d: %v", i, err)
		}
		if res.CacheHit {
			t.Errorf("infinite density run %d was served from cache", i)
		}
		if want := " 0.500  0.500  0.500  5.000  5.000  5.000 \n"; string(res.Output) != want {
			t.Errorf("infinite density run %d output = %q, want %q", i, res.Output, want)
		}
	}

	entries, err := os.ReadDir(c.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("cache has %d entries, want none", len(entries))
	}
}

func TestExecuteLenientWarnings(t *testing.T) {
	s := scenario.Default()
	s.Block.Lengths = [3]float64{0, 1, 1}
	s.Output.Select = "px nope"

	res, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{Scenario: s})
	if err != nil {
		t.Fatalf("lenient run should succeed: %v", err)
	}
	if len(res.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", res.Warnings)
	}
	if string(res.Output) != " -0.100 \n" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := scenario.Default()
	s.Timeline.Steps = 100
	_, err := NewRunner(nil, nil, nil).Execute(ctx, Options{Scenario: s})
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("got %v, want CANCELED", err)
	}
}

func TestSimulateHooks(t *testing.T) {
	counters := observability.NewCounters()
	observability.SetSimulationHooks(counters)
	defer observability.Reset()

	s := scenario.Default()
	s.Timeline.Max = 1
	s.Timeline.Steps = 10

	var col sink.Collector
	sum, err := NewRunner(nil, nil, nil).Simulate(context.Background(), Options{Scenario: s}, &col)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Steps != 10 || len(col.Samples) != 10 {
		t.Errorf("steps = %d, samples = %d; want 10", sum.Steps, len(col.Samples))
	}
	if got := counters.Snapshot(); got.Runs != 1 || got.Steps != 10 {
		t.Errorf("hooks saw %d runs, %d steps; want 1, 10", got.Runs, got.Steps)
	}
}

func TestRunnerLoggerIsUsed(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(nil, nil, log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}))
	if _, err := r.Execute(context.Background(), Options{Scenario: scenario.Default()}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "simulated") {
		t.Errorf("runner logger not used, got %q", buf.String())
	}
}
