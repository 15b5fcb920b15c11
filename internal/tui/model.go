// Package tui is the terminal front end of an exam session. It renders
// controller snapshots and turns key presses into controller actions.
package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stemsi/exstem-quiz/internal/examsession"
)

// Actions is the part of examsession.Controller the UI drives.
type Actions interface {
	Start()
	Next()
	Previous()
	JumpTo(index int)
	Select(option string)
	ToggleMark()
	Submit()
	DismissAlert()
}

// Options configures the UI.
type Options struct {
	NoColor bool
	Title   string
}

// Model is the Bubble Tea model for one exam session.
type Model struct {
	actions Actions
	states  <-chan examsession.State
	state   examsession.State

	cursor     int
	question   int
	confirming bool
	visited    map[int]bool

	keys     keyMap
	help     help.Model
	progress progress.Model
	width    int
	opts     Options
}

// NewModel builds a model reading snapshots from states.
func NewModel(actions Actions, states <-chan examsession.State, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Online Exam"
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage())
	if opts.NoColor {
		bar = progress.New(progress.WithSolidFill("7"), progress.WithWidth(40), progress.WithoutPercentage())
	}
	return Model{
		actions:  actions,
		states:   states,
		state:    examsession.NewState(),
		question: -1,
		visited:  map[int]bool{},
		keys:     defaultKeys(),
		help:     help.New(),
		progress: bar,
		opts:     opts,
	}
}

// State is the last snapshot the model rendered.
func (m Model) State() examsession.State { return m.state }

func (m Model) Init() tea.Cmd {
	return waitForState(m.states)
}

// stateMsg wraps a controller snapshot.
type stateMsg struct {
	state examsession.State
}

func waitForState(states <-chan examsession.State) tea.Cmd {
	return func() tea.Msg {
		if states == nil {
			return nil
		}
		s, ok := <-states
		if !ok {
			return tea.Quit()
		}
		return stateMsg{state: s}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = max(min(msg.Width-20, 60), 10)
		return m, nil
	case stateMsg:
		m = m.applyState(msg.state)
		return m, waitForState(m.states)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) applyState(s examsession.State) Model {
	m.state = s
	if s.Phase != examsession.PhaseInProgress {
		m.confirming = false
	}
	if s.Phase == examsession.PhaseInProgress || s.Phase == examsession.PhaseSubmitting {
		if s.Current != m.question {
			m.question = s.Current
			m.cursor = 0
			if q, ok := s.CurrentQuestion(); ok {
				if idx := slices.Index(q.Options, s.Answers[s.Current]); idx >= 0 {
					m.cursor = idx
				}
			}
		}
		if !m.visited[s.Current] {
			visited := make(map[int]bool, len(m.visited)+1)
			for k := range m.visited {
				visited[k] = true
			}
			visited[s.Current] = true
			m.visited = visited
		}
	}
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	switch m.state.Phase {
	case examsession.PhaseLoading:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	case examsession.PhaseNotStarted:
		switch {
		case key.Matches(msg, m.keys.Start):
			m.actions.Start()
		case key.Matches(msg, m.keys.Dismiss):
			m.actions.DismissAlert()
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		}
	case examsession.PhaseInProgress:
		if m.confirming {
			return m.handleConfirm(msg)
		}
		return m.handleExamKey(msg)
	case examsession.PhaseSubmitting:
		// Input is ignored until the backend answers.
	case examsession.PhaseTerminated, examsession.PhaseNoQuestions:
		if key.Matches(msg, m.keys.Quit) || msg.Type == tea.KeyEnter {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirming = false
		m.actions.Submit()
	case key.Matches(msg, m.keys.Cancel):
		m.confirming = false
	}
	return m, nil
}

func (m Model) handleExamKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	q, ok := m.state.CurrentQuestion()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		// The countdown keeps its start marker, so a restart resumes.
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(q.Options)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Choose):
		if m.cursor < len(q.Options) {
			m.actions.Select(q.Options[m.cursor])
		}
	case key.Matches(msg, m.keys.Prev):
		m.actions.Previous()
	case key.Matches(msg, m.keys.Next):
		m.actions.Next()
	case key.Matches(msg, m.keys.Jump):
		m.actions.JumpTo(int(msg.Runes[0]-'1'))
	case key.Matches(msg, m.keys.Mark):
		m.actions.ToggleMark()
	case key.Matches(msg, m.keys.Submit):
		m.confirming = true
	case key.Matches(msg, m.keys.Dismiss):
		m.actions.DismissAlert()
	}
	return m, nil
}
