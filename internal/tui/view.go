package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/stemsi/exstem-quiz/internal/examsession"
	"github.com/stemsi/exstem-quiz/internal/model"
)

var (
	colorTitle    = lipgloss.Color("33")
	colorMuted    = lipgloss.Color("242")
	colorWarning  = lipgloss.Color("214")
	colorCritical = lipgloss.Color("196")
	colorGood     = lipgloss.Color("42")
	colorMarked   = lipgloss.Color("213")
	colorCurrent  = lipgloss.Color("39")
)

func (m Model) View() string {
	var body string
	switch m.state.Phase {
	case examsession.PhaseLoading:
		body = m.muted("Loading exam...")
	case examsession.PhaseNotStarted:
		body = m.viewInstructions()
	case examsession.PhaseInProgress, examsession.PhaseSubmitting:
		body = m.viewExam()
	case examsession.PhaseNoQuestions:
		body = "No questions available. Please contact your administrator."
	case examsession.PhaseTerminated:
		body = m.viewTerminated()
	}

	parts := []string{m.styled(m.opts.Title, colorTitle, true), body}
	if alert := m.viewAlert(); alert != "" {
		parts = append(parts, alert)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func (m Model) viewInstructions() string {
	s := m.state
	lines := []string{
		"Instructions",
		"",
		fmt.Sprintf("  Questions:       %d", len(s.Questions)),
		fmt.Sprintf("  Duration:        %d minutes", s.DurationSeconds/60),
		fmt.Sprintf("  Passing score:   %d%%", s.PassingPercentage),
		"",
		"  Choosing an option moves on to the next question.",
		"  Mark questions to review them before submitting.",
		"  The exam is submitted automatically when time runs out.",
		"",
		m.muted("Press enter to start, q to quit."),
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewExam() string {
	s := m.state
	q, ok := s.CurrentQuestion()
	if !ok {
		return ""
	}

	header := fmt.Sprintf("Question %d of %d   %s", s.Current+1, len(s.Questions), m.viewTimer())
	if s.Marked[s.Current] {
		header += "   " + m.styled("[marked]", colorMarked, false)
	}

	options := make([]string, len(q.Options))
	for i, opt := range q.Options {
		pointer := "  "
		if i == m.cursor {
			pointer = "> "
		}
		box := "( )"
		if s.Answers[s.Current] == opt {
			box = "(*)"
		}
		line := fmt.Sprintf("%s%s %c. %s", pointer, box, 'A'+i, opt)
		if s.Answers[s.Current] == opt {
			line = m.styled(line, colorGood, false)
		}
		options[i] = line
	}

	answered := s.AnsweredCount()
	total := len(s.Questions)
	counts := fmt.Sprintf("Answered: %d   Marked: %d   Not visited: %d", answered, s.MarkedCount(), total-answered)

	parts := []string{
		header,
		"",
		q.Question,
		"",
		strings.Join(options, "\n"),
		"",
		m.viewNavigator(),
		m.progress.ViewAs(float64(answered) / float64(total)),
		m.muted(counts),
	}

	switch {
	case s.Phase == examsession.PhaseSubmitting:
		parts = append(parts, m.styled("Submitting...", colorWarning, true))
	case m.confirming:
		parts = append(parts, m.viewConfirm())
	default:
		parts = append(parts, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewTimer() string {
	s := m.state
	text := "Time left: " + formatClock(s.RemainingSeconds)
	switch levelFor(s.RemainingSeconds) {
	case timerCritical:
		return m.styled(text, colorCritical, true)
	case timerWarning:
		return m.styled(text, colorWarning, true)
	}
	return text
}

// viewNavigator renders one cell per question: current, answered, marked
// and visited are distinguished by color.
func (m Model) viewNavigator() string {
	s := m.state
	cells := make([]string, len(s.Questions))
	for i := range s.Questions {
		label := fmt.Sprintf("%2d", i+1)
		switch {
		case i == s.Current:
			cells[i] = m.styled("["+label+"]", colorCurrent, true)
		case s.Marked[i]:
			cells[i] = m.styled(" "+label+"?", colorMarked, false)
		case s.Answers[i] != "":
			cells[i] = m.styled(" "+label+" ", colorGood, false)
		case m.visited[i]:
			cells[i] = " " + label + " "
		default:
			cells[i] = m.muted(" " + label + " ")
		}
	}

	const perRow = 10
	var rows []string
	for start := 0; start < len(cells); start += perRow {
		end := min(start+perRow, len(cells))
		rows = append(rows, strings.Join(cells[start:end], ""))
	}
	return strings.Join(rows, "\n")
}

func (m Model) viewConfirm() string {
	s := m.state
	unanswered := len(s.Questions) - s.AnsweredCount()
	msg := "Submit your exam now?"
	if unanswered > 0 {
		msg = fmt.Sprintf("You have %d unanswered question(s). Submit anyway?", unanswered)
	}
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if !m.opts.NoColor {
		box = box.BorderForeground(colorWarning)
	}
	return box.Render(msg + "\n" + m.muted("y: submit   n: keep working"))
}

func (m Model) viewTerminated() string {
	s := m.state
	switch s.Outcome {
	case examsession.OutcomeCompleted:
		return m.viewReport(s.Report)
	case examsession.OutcomeReauthRequired:
		return "Your session has expired. Please log in again.\n" + m.muted("Press q to quit.")
	default:
		return m.muted("Press q to quit.")
	}
}

func (m Model) viewReport(r *model.ExamReport) string {
	if r == nil {
		return "Exam submitted."
	}

	pct := r.Percentage.StringFixed(2)
	verdict := m.styled("PASSED", colorGood, true)
	if r.Percentage.LessThan(decimal.NewFromInt(int64(m.state.PassingPercentage))) {
		verdict = m.styled("NOT PASSED", colorCritical, true)
	}

	lines := []string{
		"Exam Results",
		"",
		fmt.Sprintf("  Score:       %d / %d", r.Score, r.TotalQuestions),
		fmt.Sprintf("  Percentage:  %s%%  %s", pct, verdict),
	}
	if r.TimeSpent != "" {
		lines = append(lines, "  Time spent:  "+r.TimeSpent)
	}
	lines = append(lines, "")

	for i, d := range r.DetailedResults {
		mark := m.styled("✓", colorGood, true)
		if !d.IsCorrect {
			mark = m.styled("✗", colorCritical, true)
		}
		lines = append(lines, fmt.Sprintf("%s %d. %s", mark, i+1, d.Question))
		lines = append(lines, "     Your answer: "+d.UserAnswer)
		if !d.IsCorrect {
			lines = append(lines, "     Correct answer: "+d.CorrectAnswer)
		}
	}
	lines = append(lines, "", m.muted("Press q to quit."))
	return strings.Join(lines, "\n")
}

func (m Model) viewAlert() string {
	a := m.state.Alert
	if a == nil {
		return ""
	}
	switch a.Level {
	case examsession.AlertError:
		return m.styled("! "+a.Message, colorCritical, true)
	case examsession.AlertWarning:
		return m.styled("! "+a.Message, colorWarning, false)
	}
	return m.muted(a.Message)
}

func (m Model) muted(text string) string {
	return m.styled(text, colorMuted, false)
}

func (m Model) styled(text string, color lipgloss.Color, bold bool) string {
	if m.opts.NoColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
}
