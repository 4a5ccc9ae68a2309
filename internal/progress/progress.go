// Package progress shows a spinner with the current pipeline stage of every
// running contract while stdout is a terminal.
package progress

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/verifyapi/pkg/stage"
)

var verbs = map[stage.Stage]string{
	stage.Load:      "loading contract",
	stage.Prompt:    "prompting",
	stage.Generate:  "generating suite",
	stage.Extract:   "extracting code",
	stage.Execute:   "executing suite",
	stage.Normalize: "normalizing results",
	stage.Report:    "reporting",
}

// Verb describes s for display.
func Verb(s stage.Stage) string {
	if v, ok := verbs[s]; ok {
		return v
	}
	return string(s)
}

type stageMsg struct {
	contract string
	stage    stage.Stage
}

type finishMsg struct{}

type model struct {
	spinner  spinner.Model
	order    []string
	current  map[string]stage.Stage
	muted    lipgloss.Style
	quitting bool
}

func newModel() model {
	return model{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		current: map[string]stage.Stage{},
		muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageMsg:
		if _, seen := m.current[msg.contract]; !seen {
			m.order = append(m.order, msg.contract)
		}
		m.current[msg.contract] = msg.stage
		return m, nil
	case finishMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	if m.quitting || len(m.order) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, c := range m.order {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(c)
		sb.WriteString(m.muted.Render(" " + Verb(m.current[c]) + "…"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Reporter drives the spinner program. Its Stage method fits
// pipeline.WithStageHook.
type Reporter struct {
	program *tea.Program
	done    chan struct{}
}

// Start runs the spinner on out until Stop or ctx is done. Keyboard input
// and signal handling stay with the caller.
func Start(ctx context.Context, out io.Writer) *Reporter {
	r := &Reporter{
		program: tea.NewProgram(newModel(),
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithInput(nil),
			tea.WithoutSignalHandler(),
		),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return r
}

// Stage records that contract entered s. Safe for concurrent use.
func (r *Reporter) Stage(contract string, s stage.Stage) {
	r.program.Send(stageMsg{contract: contract, stage: s})
}

// Stop clears the spinner and waits for the program to exit.
func (r *Reporter) Stop() {
	r.program.Send(finishMsg{})
	<-r.done
}
