// Package tui renders interactive progress for apply runs.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mailreeve/mailreeve/internal/engine"
	"github.com/mailreeve/mailreeve/internal/rules"
)

type phase int

const (
	phaseScanning phase = iota
	phaseExecuting
	phaseDone
)

type (
	scanStartMsg   struct{ rules int }
	ruleScannedMsg struct {
		name             string
		scanned, matched int
	}
	executeStartMsg struct{ total int }
	progressMsg     struct{ processed, succeeded, failed int }
	doneMsg         struct{}
)

const maxBarWidth = 60

type runModel struct {
	spin   spinner.Model
	bar    progress.Model
	terms  []string
	cancel context.CancelFunc

	phase     phase
	ruleCount int
	ruleLines []string

	total     int
	processed int
	failed    int

	cancelling bool
}

func newRunModel(terms []string, cancel context.CancelFunc) runModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = spinnerStyle
	return runModel{
		spin:   sp,
		bar:    progress.New(progress.WithDefaultGradient()),
		terms:  terms,
		cancel: cancel,
	}
}

func (m runModel) Init() tea.Cmd { return m.spin.Tick }

func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// The engine owns the run; ask it to stop and keep the
			// view up until it does.
			if m.cancel != nil {
				m.cancel()
			}
			m.cancelling = true
		}
		return m, nil
	case tea.WindowSizeMsg:
		if w := min(msg.Width-4, maxBarWidth); w > 0 {
			m.bar.Width = w
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case scanStartMsg:
		m.phase = phaseScanning
		m.ruleCount = msg.rules
		return m, nil
	case ruleScannedMsg:
		line := fmt.Sprintf("%s %s: %d scanned, %d matched",
			okStyle.Render("✓"), applyHighlight(msg.name, m.terms), msg.scanned, msg.matched)
		m.ruleLines = append(m.ruleLines, line)
		return m, nil
	case executeStartMsg:
		m.phase = phaseExecuting
		m.total = msg.total
		return m, nil
	case progressMsg:
		m.processed = msg.processed
		m.failed = msg.failed
		return m, nil
	case doneMsg:
		m.phase = phaseDone
		return m, tea.Quit
	}
	return m, nil
}

func (m runModel) View() string {
	if m.phase == phaseDone {
		return ""
	}
	var b strings.Builder
	for _, line := range m.ruleLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	switch m.phase {
	case phaseScanning:
		fmt.Fprintf(&b, "%s Scanning rules (%d/%d)\n", m.spin.View(), len(m.ruleLines), m.ruleCount)
	case phaseExecuting:
		pct := 1.0
		if m.total > 0 {
			pct = float64(m.processed) / float64(m.total)
		}
		b.WriteString(m.bar.ViewAs(pct))
		b.WriteByte('\n')
		fmt.Fprintf(&b, "Applying actions %d/%d", m.processed, m.total)
		if m.failed > 0 {
			fmt.Fprintf(&b, " (%s)", failStyle.Render(fmt.Sprintf("%d failed", m.failed)))
		}
		b.WriteByte('\n')
	}
	if m.cancelling {
		b.WriteString(dimStyle.Render("Cancelling, waiting for the current batch to finish..."))
		b.WriteByte('\n')
	}
	return b.String()
}

// RunView is the interactive progress display for an apply run. It
// implements engine.Progress, so it can be handed straight to the
// engine; events may arrive from any goroutine.
type RunView struct {
	program *tea.Program
}

var _ engine.Progress = (*RunView)(nil)

// NewRunView builds the view. terms are highlighted wherever they appear
// in rule names, so a filtered run shows why each rule was selected.
// cancel, when non-nil, is invoked if the user interrupts the run.
func NewRunView(terms []string, cancel context.CancelFunc) *RunView {
	return &RunView{program: tea.NewProgram(newRunModel(terms, cancel))}
}

// Run blocks until the run completes or the user quits the view.
// Call it on the main goroutine while the engine runs on another.
func (v *RunView) Run() error {
	_, err := v.program.Run()
	return err
}

// Finish stops the view. The engine only reports completion for runs
// that reach a terminal state, so callers should Finish unconditionally
// once the engine returns; extra calls are harmless.
func (v *RunView) Finish() {
	v.program.Send(doneMsg{})
}

func (v *RunView) OnScanStart(ruleCount int) {
	v.program.Send(scanStartMsg{rules: ruleCount})
}

func (v *RunView) OnRuleScanned(rule *rules.Rule, scanned, matched int) {
	v.program.Send(ruleScannedMsg{name: rule.Name, scanned: scanned, matched: matched})
}

func (v *RunView) OnExecuteStart(total int) {
	v.program.Send(executeStartMsg{total: total})
}

func (v *RunView) OnProgress(processed, succeeded, failed int) {
	v.program.Send(progressMsg{processed: processed, succeeded: succeeded, failed: failed})
}

func (v *RunView) OnComplete(*engine.RunSummary) {
	v.program.Send(doneMsg{})
}
