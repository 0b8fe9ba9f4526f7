package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/scenario"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/timeline"
)

// playTick is the delay between steps while auto-playing.
const playTick = 80 * time.Millisecond

var (
	playHelpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	playStatusStyle = lipgloss.NewStyle().Foreground(colorGray)
	playDoneStyle   = lipgloss.NewStyle().Foreground(colorGreen)
)

// playCommand creates the play command for stepping through a simulation.
func (c *CLI) playCommand() *cobra.Command {
	var flags scenarioFlags

	cmd := &cobra.Command{
		Use:   "play [scenario.toml]",
		Short: "Step through a simulation interactively",
		Long: `Step through a simulation one timeline sample at a time.

Keys: space or → steps, a toggles auto-play, r resets, q quits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScenario(cmd, args)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, &s); err != nil {
				return err
			}
			m, err := newPlayModel(s)
			if err != nil {
				return err
			}
			for _, w := range s.Warnings() {
				printWarning("%s", w)
			}

			p := tea.NewProgram(m, tea.WithContext(cmd.Context()), tea.WithOutput(cmd.OutOrStdout()))
			final, err := p.Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(playModel); ok {
				c.Logger.Debug("play finished", "steps", fm.steps, "t", fm.time)
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// =============================================================================
// playModel - Interactive stepping
// =============================================================================

type playTickMsg struct{}

// playModel is the bubbletea model of an interactive run. It drives the
// timeline one sample per step instead of handing it to sim.Run.
type playModel struct {
	scn      scenario.Scenario
	selector block.Selector
	block    block.Block
	timeline *timeline.Regular

	steps  int
	time   float64
	rows   [][]string
	done   bool
	auto   bool
	height int
}

func newPlayModel(s scenario.Scenario) (playModel, error) {
	if err := s.Validate(false); err != nil {
		return playModel{}, err
	}
	m := playModel{scn: s, height: 15}
	m.selector, _ = s.Selector(false)
	if err := m.reset(); err != nil {
		return playModel{}, err
	}
	return m, nil
}

// reset rebuilds the block and timeline from the scenario.
func (m *playModel) reset() error {
	tl, err := m.scn.NewTimeline()
	if err != nil {
		return err
	}
	m.timeline = tl
	m.block = m.scn.Builder().Get()
	m.steps = 0
	m.time = tl.Current()
	m.done = tl.Done()
	m.auto = false
	m.rows = nil
	if m.scn.Output.Initial && !m.done {
		m.record()
	}
	return nil
}

// step advances the block by one timeline sample.
func (m *playModel) step() {
	t, ok := m.timeline.Next()
	if !ok {
		m.done = true
		m.auto = false
		return
	}
	sim.Forward(&m.block, m.timeline.Step())
	m.steps++
	m.time = t + m.timeline.Step()
	m.record()
	m.done = m.timeline.Done()
	if m.done {
		m.auto = false
	}
}

func (m *playModel) record() {
	s := sim.Sample{Index: m.steps, Time: m.time, Block: m.block}
	m.rows = append(m.rows, tableRow(s, m.selector, m.scn.Output.Decimals, true))
}

func tick() tea.Cmd {
	return tea.Tick(playTick, func(time.Time) tea.Msg { return playTickMsg{} })
}

func (m playModel) Init() tea.Cmd {
	return nil
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "right", "l", "n":
			m.step()
		case "a":
			if m.done {
				return m, nil
			}
			m.auto = !m.auto
			if m.auto {
				return m, tick()
			}
		case "r":
			_ = m.reset()
		}
	case playTickMsg:
		if !m.auto {
			return m, nil
		}
		m.step()
		if m.auto {
			return m, tick()
		}
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m playModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("rody play"))
	b.WriteString("\n")
	b.WriteString(playHelpStyle.Render("space/→ step  a auto  r reset  q quit"))
	b.WriteString("\n\n")

	rows := m.rows
	if len(rows) > m.height {
		rows = rows[len(rows)-m.height:]
	}
	b.WriteString(renderTable(tableHeaders(m.selector, true), rows))
	b.WriteString("\n")

	status := fmt.Sprintf("step %d of %d · t = %s", m.steps, m.timeline.Len()+m.steps, formatFloat(m.time))
	b.WriteString(playStatusStyle.Render(status))
	if m.done {
		b.WriteString("  " + playDoneStyle.Render(iconSuccess+" done"))
	} else if m.auto {
		b.WriteString("  " + StyleNumber.Render("playing"))
	}
	b.WriteString("\n")
	return b.String()
}
