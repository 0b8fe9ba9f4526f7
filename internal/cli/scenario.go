package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/scenario"
)

// scenarioCommand creates the scenario command for managing scenario files.
func (c *CLI) scenarioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Write and check TOML scenario files",
	}

	cmd.AddCommand(c.scenarioInitCommand())
	cmd.AddCommand(c.scenarioCheckCommand())

	return cmd
}

// scenarioInitCommand creates the "scenario init" subcommand.
func (c *CLI) scenarioInitCommand() *cobra.Command {
	var (
		flags scenarioFlags
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default scenario, with flag overrides, as TOML",
		Example: `  # Print the built-in scenario
  rody scenario init

  # Start a new scenario file for a slow flat plate
  rody scenario init plate.toml --lengths 2,2,0.1 --velocity 0,0,-0.5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := scenario.Default()
			if err := flags.apply(cmd, &s); err != nil {
				return err
			}

			if len(args) == 0 {
				return scenario.Encode(cmd.OutOrStdout(), s)
			}

			path := args[0]
			if err := errors.ValidateOutputPath(path); err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeInvalidInput, "%s already exists (use --force to overwrite)", path)
			}
			if err := scenario.Save(path, s); err != nil {
				return err
			}
			printSuccess("Created scenario")
			printFile(path)
			printNextStep("Run it", "rody run "+path)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

// scenarioCheckCommand creates the "scenario check" subcommand.
func (c *CLI) scenarioCheckCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <scenario.toml>",
		Short: "Validate a scenario file and describe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScenario(cmd, args)
			if err != nil {
				return err
			}
			if err := s.Validate(strict); err != nil {
				return err
			}

			b := s.Builder().Get()
			sel, _ := s.Selector(false)

			printSuccess("Scenario is valid")
			printKeyValue("mass", formatFloat(b.Mass))
			printKeyValue("volume", formatFloat(b.Volume()))
			printKeyValue("lengths", formatVec(s.Block.Lengths))
			printKeyValue("position", formatVec(s.Block.Position))
			printKeyValue("velocity", formatVec(s.Block.Velocity))
			printKeyValue("timeline", fmt.Sprintf("[%s, %s) in %d steps",
				formatFloat(s.Timeline.Min), formatFloat(s.Timeline.Max), s.Timeline.Steps))
			printKeyValue("channels", strings.Join(sel.Names(), " "))

			for _, w := range s.Warnings() {
				printWarning("%s", w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat degenerate geometry and unknown selector tokens as errors")

	return cmd
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatVec(v [3]float64) string {
	return formatFloat(v[0]) + ", " + formatFloat(v[1]) + ", " + formatFloat(v[2])
}
