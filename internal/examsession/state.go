package examsession

import (
	"slices"
	"time"

	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// Phase is the lifecycle position of an exam session.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseNotStarted
	PhaseInProgress
	PhaseSubmitting
	PhaseTerminated
	// PhaseNoQuestions is terminal: the bank is empty and no timer runs.
	PhaseNoQuestions
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseNotStarted:
		return "not_started"
	case PhaseInProgress:
		return "in_progress"
	case PhaseSubmitting:
		return "submitting"
	case PhaseTerminated:
		return "terminated"
	case PhaseNoQuestions:
		return "no_questions"
	}
	return "unknown"
}

// Outcome explains why a session reached PhaseTerminated.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCompleted
	OutcomeReauthRequired
	OutcomeLoadFailed
)

// AlertLevel grades messages shown to the exam taker.
type AlertLevel int

const (
	AlertInfo AlertLevel = iota
	AlertWarning
	AlertError
)

// Alert is a transient message for the exam taker.
type Alert struct {
	Level   AlertLevel
	Message string
}

// Effect is a side effect a transition asks the controller to perform.
type Effect int

const (
	EffectNone Effect = iota
	// EffectSubmit sends the current answers to the backend.
	EffectSubmit
	// EffectScheduleAdvance moves to the next question after the advance delay.
	EffectScheduleAdvance
)

// State is an immutable snapshot of one exam session. Transitions never
// modify their input; they return a new State.
type State struct {
	Phase     Phase
	Outcome   Outcome
	Questions []model.ExamQuestion
	Current   int
	// Answers is keyed by position in Questions, not by question id.
	Answers   map[int]string
	Marked    map[int]bool

	DurationSeconds   int
	PassingPercentage int
	RemainingSeconds  int
	TimerRunning      bool
	StartedAt         time.Time
	Resumed           bool

	Alert  *Alert
	Report *model.ExamReport
}

// NewState returns the session before anything was loaded.
func NewState() State {
	return State{
		Phase:   PhaseLoading,
		Answers: map[int]string{},
		Marked:  map[int]bool{},
	}
}

func (s State) clone() State {
	out := s
	out.Answers = make(map[int]string, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	out.Marked = make(map[int]bool, len(s.Marked))
	for k, v := range s.Marked {
		out.Marked[k] = v
	}
	return out
}

// AnsweredCount returns how many questions have a selected option.
func (s State) AnsweredCount() int { return len(s.Answers) }

// MarkedCount returns how many questions are marked for review.
func (s State) MarkedCount() int { return len(s.Marked) }

// CurrentQuestion returns the question on screen.
func (s State) CurrentQuestion() (model.ExamQuestion, bool) {
	if s.Current < 0 || s.Current >= len(s.Questions) {
		return model.ExamQuestion{}, false
	}
	return s.Questions[s.Current], true
}

// Loaded applies the initial fetch. A started marker resumes the countdown,
// a submitted marker is discarded and the instructions are shown again.
func Loaded(s State, questions []model.ExamQuestion, settings model.ExamSettings, markers Markers, now time.Time) State {
	s = s.clone()
	duration := settings.DurationSeconds
	s.Questions = questions
	s.DurationSeconds = duration
	s.PassingPercentage = settings.PassingPercentage

	if len(questions) == 0 {
		s.Phase = PhaseNoQuestions
		return s
	}

	if markers.Started && !markers.Submitted {
		stored := markers.DurationSeconds
		if stored <= 0 {
			stored = duration
		}
		return Resume(s, markers.StartedAt, stored, now)
	}

	s.Phase = PhaseNotStarted
	s.RemainingSeconds = duration
	return s
}

// LoadFailed ends the session when the bank could not be fetched.
func LoadFailed(s State, unauthorized bool, message string) State {
	s = s.clone()
	s.Phase = PhaseTerminated
	s.Outcome = OutcomeLoadFailed
	if unauthorized {
		s.Outcome = OutcomeReauthRequired
	}
	s.Alert = &Alert{Level: AlertError, Message: message}
	return s
}

// Begin starts a fresh countdown once the instructions are accepted.
func Begin(s State, now time.Time) State {
	if s.Phase != PhaseNotStarted {
		return s
	}
	s = s.clone()
	s.Phase = PhaseInProgress
	s.RemainingSeconds = s.DurationSeconds
	s.StartedAt = now
	s.TimerRunning = true
	s.Current = 0
	return s
}

// Resume restarts a countdown recorded by an earlier run. Remaining time is
// derived from wall-clock time, so a restart does not extend the exam.
func Resume(s State, startedAt time.Time, storedDuration int, now time.Time) State {
	s = s.clone()
	elapsed := int(now.Sub(startedAt) / time.Second)
	s.Phase = PhaseInProgress
	s.DurationSeconds = storedDuration
	s.RemainingSeconds = max(0, storedDuration-elapsed)
	s.StartedAt = startedAt
	s.TimerRunning = true
	s.Resumed = true
	return s
}

// Tick advances the countdown by one second. Reaching zero stops the timer
// and forces a submission without confirmation.
func Tick(s State) (State, Effect) {
	if s.Phase != PhaseInProgress || !s.TimerRunning {
		return s, EffectNone
	}
	s = s.clone()
	if s.RemainingSeconds > 0 {
		s.RemainingSeconds--
	}
	if s.RemainingSeconds > 0 {
		return s, EffectNone
	}
	s.TimerRunning = false
	s.Phase = PhaseSubmitting
	s.Alert = &Alert{Level: AlertInfo, Message: "Time is up. Submitting your exam..."}
	return s, EffectSubmit
}

// JumpTo moves to index. Out-of-range requests are ignored.
func JumpTo(s State, index int) State {
	if s.Phase != PhaseInProgress || index < 0 || index >= len(s.Questions) || index == s.Current {
		return s
	}
	s = s.clone()
	s.Current = index
	return s
}

// Next moves one question forward.
func Next(s State) State { return JumpTo(s, s.Current+1) }

// Previous moves one question back.
func Previous(s State) State { return JumpTo(s, s.Current-1) }

// Select records option for the current question and asks for an automatic
// advance unless this is the last question. Options not offered are ignored.
func Select(s State, option string) (State, Effect) {
	q, ok := s.CurrentQuestion()
	if s.Phase != PhaseInProgress || !ok || !slices.Contains(q.Options, option) {
		return s, EffectNone
	}
	s = s.clone()
	s.Answers[s.Current] = option
	if s.Current < len(s.Questions)-1 {
		return s, EffectScheduleAdvance
	}
	return s, EffectNone
}

// AutoAdvance applies a delayed advance scheduled by Select. It only fires
// when the exam taker is still on the question they answered.
func AutoAdvance(s State, from int) State {
	if s.Phase != PhaseInProgress || s.Current != from {
		return s
	}
	return Next(s)
}

// ToggleMark flips the review mark on the current question.
func ToggleMark(s State) State {
	if s.Phase != PhaseInProgress || len(s.Questions) == 0 {
		return s
	}
	s = s.clone()
	if s.Marked[s.Current] {
		delete(s.Marked, s.Current)
	} else {
		s.Marked[s.Current] = true
	}
	return s
}

// BeginSubmit enters Submitting after the exam taker confirmed. Once
// submitting, every further submit request is ignored.
func BeginSubmit(s State) (State, Effect) {
	if s.Phase != PhaseInProgress {
		return s, EffectNone
	}
	s = s.clone()
	s.Phase = PhaseSubmitting
	s.Alert = &Alert{Level: AlertInfo, Message: "Submitting your exam..."}
	return s, EffectSubmit
}

// CompleteSubmit terminates the session with the scored report.
func CompleteSubmit(s State, report *model.ExamReport) State {
	if s.Phase != PhaseSubmitting {
		return s
	}
	s = s.clone()
	s.Phase = PhaseTerminated
	s.Outcome = OutcomeCompleted
	s.TimerRunning = false
	s.Report = report
	s.Alert = nil
	return s
}

// FailSubmit handles a failed submission. Rejected credentials end the
// session and drop all answers; anything else returns to InProgress with the
// answers intact. An expired countdown stays stopped; a running one is caught
// up with the time spent waiting for the backend.
func FailSubmit(s State, unauthorized bool, message string, now time.Time) State {
	if s.Phase != PhaseSubmitting {
		return s
	}
	s = s.clone()
	if unauthorized {
		s.Phase = PhaseTerminated
		s.Outcome = OutcomeReauthRequired
		s.TimerRunning = false
		s.Answers = map[int]string{}
		s.Marked = map[int]bool{}
		s.Alert = &Alert{Level: AlertError, Message: "Your session has expired. Please log in again."}
		return s
	}
	s.Phase = PhaseInProgress
	s.Alert = &Alert{Level: AlertError, Message: message}
	if s.TimerRunning && !s.StartedAt.IsZero() {
		elapsed := int(now.Sub(s.StartedAt) / time.Second)
		s.RemainingSeconds = min(s.RemainingSeconds, max(0, s.DurationSeconds-elapsed))
	}
	return s
}

// DismissAlert clears the current alert.
func DismissAlert(s State) State {
	if s.Alert == nil {
		return s
	}
	s = s.clone()
	s.Alert = nil
	return s
}

// Submission is what the backend receives: answers keyed by question id.
type Submission struct {
	Answers   map[string]string
	TimeSpent string
}

// BuildSubmission maps positional answers to question ids and reports the
// time spent as configured duration minus remaining time.
func BuildSubmission(s State) Submission {
	answers := make(map[string]string, len(s.Answers))
	for idx, opt := range s.Answers {
		if idx >= 0 && idx < len(s.Questions) {
			answers[s.Questions[idx].ID.String()] = opt
		}
	}
	return Submission{
		Answers:   answers,
		TimeSpent: scoring.FormatDuration(s.DurationSeconds - s.RemainingSeconds),
	}
}
