// Package scenario describes a complete block simulation (block, timeline and
// output selection) as a TOML document.
//
// A scenario file looks like:
//
//	[block]
//	mass_density = 1.0
//	lengths      = [1.0, 1.0, 1.0]
//	position     = [0.0, 0.0, 0.0]
//	velocity     = [-1.0, 0.0, 0.0]
//
//	[timeline]
//	min   = 0.0
//	max   = 0.1
//	steps = 1
//
//	[output]
//	select   = "_"
//	decimals = 3
//
// Missing keys keep the values of [Default], which reproduces a unit cube of
// unit density sliding along -x for one 0.1 step.
package scenario

import (
	"bytes"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/timeline"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultMassDensity is the mass per unit volume of the default block.
	DefaultMassDensity = 1.0

	// DefaultMin is the first timeline sample.
	DefaultMin = 0.0

	// DefaultMax is the exclusive end of the default timeline.
	DefaultMax = 0.1

	// DefaultSteps is the default number of timeline steps.
	DefaultSteps = 1

	// DefaultSelector selects every channel.
	DefaultSelector = "_"

	// DefaultDecimals is the default number of fractional digits.
	DefaultDecimals = 3
)

// =============================================================================
// Scenario
// =============================================================================

// Scenario is a full simulation setup.
type Scenario struct {
	Block    BlockSpec    `toml:"block" json:"block"`
	Timeline TimelineSpec `toml:"timeline" json:"timeline"`
	Output   OutputSpec   `toml:"output" json:"output"`
}

// BlockSpec is the builder input for the simulated block.
type BlockSpec struct {
	MassDensity float64    `toml:"mass_density" json:"mass_density"`
	Lengths     [3]float64 `toml:"lengths" json:"lengths"`
	Position    [3]float64 `toml:"position" json:"position"`
	Velocity    [3]float64 `toml:"velocity" json:"velocity"`
}

// TimelineSpec are the arguments of timeline.New.
type TimelineSpec struct {
	Min   float64 `toml:"min" json:"min"`
	Max   float64 `toml:"max" json:"max"`
	Steps int     `toml:"steps" json:"steps"`
}

// OutputSpec selects what gets rendered for each sample.
type OutputSpec struct {
	Select   string `toml:"select" json:"select"`
	Decimals int    `toml:"decimals" json:"decimals"`
	// Initial also renders the state before the first step.
	Initial bool `toml:"initial,omitempty" json:"initial,omitempty"`
	// Time prefixes every text line with the sample time.
	Time bool `toml:"time,omitempty" json:"time,omitempty"`
}

// Default returns the built-in scenario.
func Default() Scenario {
	return Scenario{
		Block: BlockSpec{
			MassDensity: DefaultMassDensity,
			Lengths:     [3]float64{1, 1, 1},
			Velocity:    [3]float64{-1, 0, 0},
		},
		Timeline: TimelineSpec{
			Min:   DefaultMin,
			Max:   DefaultMax,
			Steps: DefaultSteps,
		},
		Output: OutputSpec{
			Select:   DefaultSelector,
			Decimals: DefaultDecimals,
		},
	}
}

// Builder returns a block builder staged with the block spec.
func (s Scenario) Builder() *block.Builder {
	b := s.Block
	return block.NewBuilder().
		SetMassDensity(b.MassDensity).
		SetLengths(b.Lengths[0], b.Lengths[1], b.Lengths[2]).
		SetInitialPosition(b.Position[0], b.Position[1], b.Position[2]).
		SetInitialVelocity(b.Velocity[0], b.Velocity[1], b.Velocity[2])
}

// NewTimeline builds a fresh timeline from the timeline spec.
func (s Scenario) NewTimeline() (*timeline.Regular, error) {
	return timeline.New(s.Timeline.Min, s.Timeline.Max, s.Timeline.Steps)
}

// Selector parses the output selector. In strict mode unknown tokens are an
// error; otherwise they are dropped.
func (s Scenario) Selector(strict bool) (block.Selector, error) {
	if strict {
		return block.ParseSelectorStrict(s.Output.Select)
	}
	return block.ParseSelector(s.Output.Select), nil
}

// Validate checks the parts of the scenario that would make a run fail
// (timeline, decimals). With strict set it also rejects degenerate geometry,
// a negative density and unknown selector tokens.
func (s Scenario) Validate(strict bool) error {
	if err := errors.ValidateTimeline(s.Timeline.Min, s.Timeline.Max, s.Timeline.Steps); err != nil {
		return err
	}
	if err := errors.ValidateDecimals(s.Output.Decimals); err != nil {
		return err
	}
	if !strict {
		return nil
	}
	if err := errors.ValidateLengths(s.Block.Lengths); err != nil {
		return err
	}
	if err := errors.ValidateMassDensity(s.Block.MassDensity); err != nil {
		return err
	}
	_, err := s.Selector(true)
	return err
}

// Finite returns an INVALID_INPUT error naming the first block field that is
// NaN or infinite.
func (s Scenario) Finite() error {
	b := s.Block
	if err := errors.ValidateFinite("block.mass_density", b.MassDensity); err != nil {
		return err
	}
	if err := errors.ValidateFinite("block.lengths", b.Lengths[:]...); err != nil {
		return err
	}
	if err := errors.ValidateFinite("block.position", b.Position[:]...); err != nil {
		return err
	}
	return errors.ValidateFinite("block.velocity", b.Velocity[:]...)
}

// Warnings lists the degenerate-but-accepted parts of s in non-strict mode.
func (s Scenario) Warnings() []string {
	var w []string
	if err := errors.ValidateLengths(s.Block.Lengths); err != nil {
		w = append(w, errors.UserMessage(err))
	}
	if err := errors.ValidateMassDensity(s.Block.MassDensity); err != nil {
		w = append(w, errors.UserMessage(err))
	}
	if _, err := s.Selector(true); err != nil {
		w = append(w, errors.UserMessage(err))
	}
	if len(block.ParseSelector(s.Output.Select)) == 0 {
		w = append(w, "selector matches no channel, output lines will be empty")
	}
	if s.Timeline.Min >= s.Timeline.Max {
		w = append(w, "timeline is empty (min >= max)")
	}
	return w
}

// =============================================================================
// Decoding / Encoding
// =============================================================================

// Parse decodes a TOML scenario on top of Default. Unknown keys are rejected
// so that typos do not silently fall back to defaults.
func Parse(data []byte) (Scenario, error) {
	s := Default()
	md, err := toml.Decode(string(data), &s)
	if err != nil {
		return Scenario{}, errors.Wrap(errors.ErrCodeInvalidScenario, err, "decode scenario")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Scenario{}, errors.New(errors.ErrCodeInvalidScenario, "unknown key(s) %v", undecoded)
	}
	return s, nil
}

// Read decodes a scenario from r.
func Read(r io.Reader) (Scenario, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Scenario{}, errors.Wrap(errors.ErrCodeInvalidScenario, err, "read scenario")
	}
	return Parse(data)
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Scenario{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "scenario %s", path)
	}
	if err != nil {
		return Scenario{}, errors.Wrap(errors.ErrCodeInvalidScenario, err, "read %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return Scenario{}, errors.Wrap(errors.ErrCodeInvalidScenario, err, "load %s", path)
	}
	return s, nil
}

// Encode writes s as TOML.
func Encode(w io.Writer, s Scenario) error {
	if err := toml.NewEncoder(w).Encode(s); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode scenario")
	}
	return nil
}

// Marshal returns s as TOML.
func Marshal(s Scenario) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes s to path.
func Save(path string, s Scenario) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
