package tui

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/stemsi/exstem-quiz/internal/examsession"
)

// Run drives ctrl until the exam taker quits and returns the last state
// shown. The controller must already be running.
func Run(ctx context.Context, ctrl *examsession.Controller, out io.Writer, opts Options) (examsession.State, error) {
	if out == nil {
		out = os.Stdout
	}
	states, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	program := tea.NewProgram(
		NewModel(ctrl, states, opts),
		tea.WithOutput(out),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	final, err := program.Run()
	if m, ok := final.(Model); ok {
		return m.State(), err
	}
	return ctrl.Snapshot(), err
}
