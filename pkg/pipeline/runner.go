package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rodysim/rody/pkg/cache"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/observability"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/sink"
)

// keyTypeRun labels run entries in cache hooks.
const keyTypeRun = "run"

// Runner executes runs with caching. It holds no per-run state and is safe
// for concurrent use as long as its cache is.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// means cache.DefaultKeyer and a nil logger means log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// cachedRun is the cache payload of a rendered run.
type cachedRun struct {
	Summary sim.Summary `json:"summary"`
	Output  []byte      `json:"output"`
}

// Key returns the cache key of opts. opts must be validated. Scenarios with
// NaN or infinite fields have no key.
func (r *Runner) Key(opts *Options) (string, error) {
	setup := struct {
		Block    scenario.BlockSpec    `json:"block"`
		Timeline scenario.TimelineSpec `json:"timeline"`
	}{opts.Scenario.Block, opts.Scenario.Timeline}
	return r.Keyer.RunKey(setup, opts.RunKeyOpts())
}

// Execute runs opts and returns the rendered output, from cache when
// possible.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{
		Format:   opts.Format,
		Warnings: opts.Scenario.Warnings(),
	}
	key, err := r.Key(&opts)
	if err != nil {
		opts.Logger.Debug("run is not cacheable", "err", err)
	}
	result.Key = key

	if key != "" && !opts.Refresh {
		if cached, ok := r.lookup(ctx, result.Key); ok {
			result.Output = cached.Output
			result.Summary = cached.Summary
			result.CacheHit = true
			result.Stats = Stats{Steps: cached.Summary.Steps, Bytes: len(cached.Output), Duration: time.Since(start)}
			opts.Logger.Debug("cache hit", "key", result.Key)
			return result, nil
		}
	}

	var buf bytes.Buffer
	out, err := sink.New(opts.Format, &buf, opts.SinkOptions())
	if err != nil {
		return nil, err
	}
	sum, err := r.Simulate(ctx, opts, out)
	if err != nil {
		return nil, err
	}
	if err := out.Flush(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "flush %s output", opts.Format)
	}

	result.Output = buf.Bytes()
	result.Summary = sum
	result.Stats = Stats{Steps: sum.Steps, Bytes: buf.Len(), Duration: time.Since(start)}
	if key != "" {
		r.store(ctx, key, cachedRun{Summary: sum, Output: result.Output})
	}

	opts.Logger.Debug("simulated",
		"steps", sum.Steps,
		"end", sum.End,
		"distance", sum.Distance,
		"duration", result.Stats.Duration)
	return result, nil
}

// Simulate builds the block and timeline of opts and integrates, streaming
// samples to obs. Nothing is cached.
func (r *Runner) Simulate(ctx context.Context, opts Options, obs sim.Observer) (sim.Summary, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return sim.Summary{}, err
	}

	tl, err := opts.Scenario.NewTimeline()
	if err != nil {
		return sim.Summary{}, err
	}
	b := opts.Scenario.Builder().Get()

	simOpts := []sim.Option{sim.WithLogger(opts.Logger)}
	if opts.Scenario.Output.Initial {
		simOpts = append(simOpts, sim.WithInitial())
	}

	hooks := observability.Simulation()
	hooks.OnRunStart(ctx, tl.Len())
	start := time.Now()
	sum, err := sim.Run(ctx, &b, tl, obs, simOpts...)
	hooks.OnRunComplete(ctx, sum.Steps, time.Since(start), err)
	return sum, err
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) lookup(ctx context.Context, key string) (cachedRun, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache lookup failed", "err", err)
	}
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyTypeRun)
		return cachedRun{}, false
	}
	var c cachedRun
	if err := json.Unmarshal(data, &c); err != nil {
		observability.Cache().OnCacheMiss(ctx, keyTypeRun)
		return cachedRun{}, false
	}
	observability.Cache().OnCacheHit(ctx, keyTypeRun)
	return c, true
}

func (r *Runner) store(ctx context.Context, key string, c cachedRun) {
	data, err := json.Marshal(c)
	if err != nil {
		r.Logger.Debug("run is not cacheable", "err", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.DefaultTTL); err != nil {
		r.Logger.Warn("cache store failed", "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeRun, len(data))
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
