// Package pipeline runs complete simulations for the CLI and the HTTP API.
//
// A run goes scenario → block + timeline → integration → rendered output.
// Centralizing it here keeps the two entry points consistent: both validate
// the same way, render the same bytes and share the same cache keys.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Scenario: scenario.Default(),
//	    Format:   "text",
//	})
//	if err != nil {
//	    return err
//	}
//	os.Stdout.Write(result.Output)
//
// Execute caches the rendered output; Simulate streams samples to an
// observer without caching.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/cache"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/sink"
)

// DefaultFormat is the output format used when none is given.
const DefaultFormat = sink.FormatText

// =============================================================================
// Options
// =============================================================================

// Options configure one pipeline run. The struct doubles as the JSON body of
// API run requests.
type Options struct {
	Scenario scenario.Scenario `json:"scenario"`
	Format   sink.Format       `json:"format,omitempty"`
	// Strict rejects degenerate geometry and unknown selector tokens.
	Strict bool `json:"strict,omitempty"`
	// Refresh skips the cache lookup but still stores the fresh result.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result is the outcome of Execute.
type Result struct {
	// Key is the cache key of the run, empty when it cannot be cached.
	Key string
	// Format is the encoding of Output.
	Format sink.Format
	// Output is the rendered run.
	Output []byte
	// Summary describes the integration. Summary.Final is only set when the
	// run was computed rather than served from cache.
	Summary sim.Summary
	// Warnings lists degenerate input tolerated in lenient mode.
	Warnings []string
	// CacheHit reports whether Output came from cache.
	CacheHit bool
	Stats    Stats
}

// Stats contains run statistics.
type Stats struct {
	Steps    int
	Bytes    int
	Duration time.Duration
}

// ValidateFormat checks that f is a streaming format.
func ValidateFormat(f sink.Format) error {
	_, err := sink.ParseFormat(string(f))
	return err
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if err := ValidateFormat(o.Format); err != nil {
		return err
	}
	if err := o.Scenario.Validate(o.Strict); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Selector returns the parsed output selector.
func (o *Options) Selector() block.Selector {
	sel, _ := o.Scenario.Selector(false)
	return sel
}

// SinkOptions returns the rendering options for sinks.
func (o *Options) SinkOptions() sink.Options {
	return sink.Options{
		Selector: o.Selector(),
		Decimals: o.Scenario.Output.Decimals,
		Time:     o.Scenario.Output.Time,
	}
}

// RunKeyOpts returns the cache key options of the run.
func (o *Options) RunKeyOpts() cache.RunKeyOpts {
	out := o.Scenario.Output
	return cache.RunKeyOpts{
		Format:   string(o.Format),
		Selector: o.Selector().String(),
		Decimals: out.Decimals,
		Time:     out.Time,
		Initial:  out.Initial,
	}
}
