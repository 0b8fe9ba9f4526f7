package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/pipeline"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sink"
)

// formatTable renders the run as a terminal table instead of a stream.
const formatTable = "table"

// runOptions are the run settings that are not part of the scenario.
type runOptions struct {
	format  string
	output  string
	strict  bool
	noCache bool
	refresh bool
	stats   bool
	quiet   bool
}

// runCommand creates the run command for simulating scenarios.
func (c *CLI) runCommand() *cobra.Command {
	var (
		flags scenarioFlags
		opts  runOptions
	)

	cmd := &cobra.Command{
		Use:   "run [scenario.toml]",
		Short: "Simulate a scenario and print the sampled channels",
		Long: `Simulate a block over a regular timeline.

The scenario is read from a TOML file ("-" reads stdin) or starts from the
built-in unit cube. Flags override individual scenario fields.

Each step prints one line with the selected channels. Selector tokens are
px py pz vx vy vz, p (all position), v (all velocity) and _ (everything),
separated by spaces.`,
		Example: `  # Built-in scenario, all channels
  rody run

  # One second in ten steps, x position only, as CSV
  rody run --max 1 --steps 10 --select px --format csv

  # From a file, with timestamps, saved to disk
  rody run examples/scenarios/drift.toml --time -o drift.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScenario(cmd, args)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &s); err != nil {
				return err
			}
			return c.simulate(cmd.Context(), cmd.OutOrStdout(), s, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(pipeline.DefaultFormat), "output format: "+strings.Join(formatNames(), ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write output to file instead of stdout")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "reject degenerate geometry and unknown selector tokens")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print run statistics to stderr")

	return cmd
}

func formatNames() []string {
	names := make([]string, 0, len(sink.Formats)+1)
	for _, f := range sink.Formats {
		names = append(names, string(f))
	}
	return append(names, formatTable)
}

// loadScenario returns the scenario named by args, or the default one.
func loadScenario(cmd *cobra.Command, args []string) (scenario.Scenario, error) {
	if len(args) == 0 {
		return scenario.Default(), nil
	}
	if args[0] == "-" {
		return scenario.Read(cmd.InOrStdin())
	}
	return scenario.Load(args[0])
}

// simulate runs s and writes the result to stdout or o.output.
func (c *CLI) simulate(ctx context.Context, stdout io.Writer, s scenario.Scenario, o runOptions) error {
	if o.output != "" {
		if err := errors.ValidateOutputPath(o.output); err != nil {
			return err
		}
	}

	runner, err := c.newRunner(o.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	opts := pipeline.Options{
		Scenario: s,
		Format:   sink.Format(o.format),
		Strict:   o.strict,
		Refresh:  o.refresh,
	}

	var (
		data   []byte
		result *pipeline.Result
	)
	if o.format == formatTable {
		opts.Format = ""
		data, result, err = c.simulateTable(ctx, runner, opts)
	} else {
		result, err = runner.Execute(ctx, opts)
		if result != nil {
			data = result.Output
		}
	}
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		printWarning("%s", w)
	}
	if err := emit(stdout, o.output, data); err != nil {
		return err
	}
	if !o.quiet {
		prog.done(fmt.Sprintf("Simulated %d steps", result.Summary.Steps))
	}
	if o.stats {
		printStats(result.Summary, result.CacheHit)
	}
	return nil
}

// simulateTable collects every sample and renders them as one table. Tables
// are never cached.
func (c *CLI) simulateTable(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) ([]byte, *pipeline.Result, error) {
	var col sink.Collector
	sum, err := runner.Simulate(ctx, opts, &col)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Scenario.Output
	sel := opts.Selector()
	rows := make([][]string, len(col.Samples))
	for i, s := range col.Samples {
		rows[i] = tableRow(s, sel, out.Decimals, out.Time)
	}
	data := []byte(renderTable(tableHeaders(sel, out.Time), rows) + "\n")

	return data, &pipeline.Result{
		Format:   formatTable,
		Output:   data,
		Summary:  sum,
		Warnings: opts.Scenario.Warnings(),
	}, nil
}

// emit writes data to path, or to stdout when path is empty.
func emit(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "write %s", path)
	}
	printSuccess("Wrote output")
	printFile(path)
	return nil
}

// =============================================================================
// Scenario Flags
// =============================================================================

// scenarioFlags override scenario fields from the command line. Only flags
// the user actually set are applied, so a scenario file keeps its values
// for everything else.
type scenarioFlags struct {
	density  float64
	lengths  []float64
	position []float64
	velocity []float64
	min      float64
	max      float64
	steps    int
	selector string
	decimals int
	time     bool
	initial  bool
}

func (f *scenarioFlags) register(cmd *cobra.Command) {
	def := scenario.Default()
	fl := cmd.Flags()
	fl.Float64Var(&f.density, "density", def.Block.MassDensity, "mass per unit volume")
	fl.Float64SliceVar(&f.lengths, "lengths", def.Block.Lengths[:], "edge lengths x,y,z")
	fl.Float64SliceVar(&f.position, "position", def.Block.Position[:], "initial position x,y,z")
	fl.Float64SliceVar(&f.velocity, "velocity", def.Block.Velocity[:], "velocity x,y,z")
	fl.Float64Var(&f.min, "min", def.Timeline.Min, "timeline start")
	fl.Float64Var(&f.max, "max", def.Timeline.Max, "timeline end (exclusive)")
	fl.IntVarP(&f.steps, "steps", "n", def.Timeline.Steps, "number of steps between min and max")
	fl.StringVarP(&f.selector, "select", "s", def.Output.Select, "channels to print")
	fl.IntVarP(&f.decimals, "decimals", "d", def.Output.Decimals, "fractional digits per value")
	fl.BoolVar(&f.time, "time", false, "prefix each line with the sample time")
	fl.BoolVar(&f.initial, "initial", false, "also print the state before the first step")
}

func (f *scenarioFlags) apply(cmd *cobra.Command, s *scenario.Scenario) error {
	fl := cmd.Flags()
	if fl.Changed("density") {
		s.Block.MassDensity = f.density
	}
	vectors := []struct {
		name string
		src  []float64
		dst  *[3]float64
	}{
		{"lengths", f.lengths, &s.Block.Lengths},
		{"position", f.position, &s.Block.Position},
		{"velocity", f.velocity, &s.Block.Velocity},
	}
	for _, v := range vectors {
		if !fl.Changed(v.name) {
			continue
		}
		if len(v.src) != 3 {
			return errors.New(errors.ErrCodeInvalidInput, "--%s needs 3 comma-separated values, got %d", v.name, len(v.src))
		}
		copy(v.dst[:], v.src)
	}
	if fl.Changed("min") {
		s.Timeline.Min = f.min
	}
	if fl.Changed("max") {
		s.Timeline.Max = f.max
	}
	if fl.Changed("steps") {
		s.Timeline.Steps = f.steps
	}
	if fl.Changed("select") {
		s.Output.Select = f.selector
	}
	if fl.Changed("decimals") {
		s.Output.Decimals = f.decimals
	}
	if fl.Changed("time") {
		s.Output.Time = f.time
	}
	if fl.Changed("initial") {
		s.Output.Initial = f.initial
	}
	return nil
}
