package examsession

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// ErrUnauthorized is returned by a Backend when the server rejected the
// exam taker's credentials.
var ErrUnauthorized = errors.New("examsession: credentials rejected")

// Backend is the exam server as seen by the controller.
type Backend interface {
	FetchQuestions(ctx context.Context) ([]model.ExamQuestion, error)
	FetchSettings(ctx context.Context) (model.ExamSettings, error)
	Submit(ctx context.Context, sub Submission) (*model.ExamReport, error)
}

// userMessager is implemented by backend errors that carry a message meant
// for the exam taker.
type userMessager interface {
	UserMessage() string
}

const (
	TickInterval         = time.Second
	DefaultAdvanceDelay  = 500 * time.Millisecond
	DefaultSubmitTimeout = 30 * time.Second

	settingsFallbackMessage = "Failed to load exam duration. Using default duration."
	loadFailedMessage       = "Error loading questions. Please try again later."
	submitFailedMessage     = "Failed to submit exam. Please try again."
	submitTimeoutMessage    = "Submission timed out. Please try again."
)

// Options tunes a Controller. Zero values pick the defaults.
type Options struct {
	Clock         Clock
	AdvanceDelay  time.Duration
	SubmitTimeout time.Duration
	Logger        zerolog.Logger
}

type actionKind int

const (
	actionStart actionKind = iota
	actionNext
	actionPrevious
	actionJump
	actionSelect
	actionToggleMark
	actionSubmit
	actionDismiss
)

type actionEvent struct {
	kind   actionKind
	index  int
	option string
}

type loadedEvent struct {
	questions   []model.ExamQuestion
	questionErr error
	settings    model.ExamSettings
	settingsErr error
	markers     Markers
}

type submitDoneEvent struct {
	report *model.ExamReport
	err    error
}

type advanceEvent struct{ from int }

type snapshotRequest struct{ reply chan State }

// Controller runs one exam session. A single goroutine (Run) owns the state;
// user actions, countdown ticks and backend completions all arrive as
// events on that goroutine.
type Controller struct {
	backend       Backend
	markers       MarkerStore
	clock         Clock
	advanceDelay  time.Duration
	submitTimeout time.Duration
	log           zerolog.Logger

	events chan any
	done   chan struct{}

	mu      sync.Mutex
	last    State
	subs    map[int]chan State
	nextSub int

	// owned by Run
	state  State
	ticker Ticker
}

// NewController wires a controller. Call Run to start it.
func NewController(backend Backend, markers MarkerStore, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.AdvanceDelay <= 0 {
		opts.AdvanceDelay = DefaultAdvanceDelay
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = DefaultSubmitTimeout
	}
	st := NewState()
	return &Controller{
		backend:       backend,
		markers:       markers,
		clock:         opts.Clock,
		advanceDelay:  opts.AdvanceDelay,
		submitTimeout: opts.SubmitTimeout,
		log:           opts.Logger.With().Str("component", "exam_session").Logger(),
		events:        make(chan any, 64),
		done:          make(chan struct{}),
		last:          st,
		subs:          make(map[int]chan State),
		state:         st,
	}
}

// Run loads the exam and processes events until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.stopTicker()

	go c.load(ctx)

	for {
		var ticks <-chan time.Time
		if c.ticker != nil {
			ticks = c.ticker.C()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticks:
			next, eff := Tick(c.state)
			c.commit(ctx, next, eff)
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) Start()            { c.post(actionEvent{kind: actionStart}) }
func (c *Controller) Next()             { c.post(actionEvent{kind: actionNext}) }
func (c *Controller) Previous()         { c.post(actionEvent{kind: actionPrevious}) }
func (c *Controller) JumpTo(index int)  { c.post(actionEvent{kind: actionJump, index: index}) }
func (c *Controller) Select(opt string) { c.post(actionEvent{kind: actionSelect, option: opt}) }
func (c *Controller) ToggleMark()       { c.post(actionEvent{kind: actionToggleMark}) }
func (c *Controller) DismissAlert()     { c.post(actionEvent{kind: actionDismiss}) }

// Submit requests a submission. Confirmation is the caller's job; requests
// that arrive while a submission is in flight are ignored.
func (c *Controller) Submit() { c.post(actionEvent{kind: actionSubmit}) }

// Snapshot returns the state after every event posted before the call has
// been processed.
func (c *Controller) Snapshot() State {
	req := snapshotRequest{reply: make(chan State, 1)}
	select {
	case c.events <- req:
	case <-c.done:
		return c.latest()
	}
	select {
	case st := <-req.reply:
		return st
	case <-c.done:
		return c.latest()
	}
}

// Subscribe returns a channel that always holds the most recent state.
// Slow readers skip intermediate states.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	ch <- c.last
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) latest() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Controller) post(ev any) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) load(ctx context.Context) {
	ev := loadedEvent{}
	ev.questions, ev.questionErr = c.backend.FetchQuestions(ctx)
	if ev.questionErr == nil {
		ev.settings, ev.settingsErr = c.backend.FetchSettings(ctx)
	}

	m, err := c.markers.Load()
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to read session markers, starting fresh")
	}
	ev.markers = m
	c.post(ev)
}

func (c *Controller) handle(ctx context.Context, ev any) {
	switch ev := ev.(type) {
	case snapshotRequest:
		ev.reply <- c.state
	case loadedEvent:
		c.commit(ctx, c.applyLoaded(ev), EffectNone)
	case advanceEvent:
		c.commit(ctx, AutoAdvance(c.state, ev.from), EffectNone)
	case submitDoneEvent:
		c.commit(ctx, c.applySubmitResult(ev), EffectNone)
	case actionEvent:
		next, eff := c.applyAction(ev)
		c.commit(ctx, next, eff)
	}
}

func (c *Controller) applyLoaded(ev loadedEvent) State {
	if ev.questionErr != nil {
		unauthorized := errors.Is(ev.questionErr, ErrUnauthorized)
		c.log.Error().Err(ev.questionErr).Msg("Failed to load questions")
		if unauthorized {
			c.clearMarkers()
		}
		return LoadFailed(c.state, unauthorized, loadFailedMessage)
	}

	settings := ev.settings
	fellBack := false
	if ev.settingsErr != nil || settings.DurationSeconds <= 0 {
		c.log.Warn().Err(ev.settingsErr).Int("fallback_seconds", model.DefaultDurationSeconds).
			Msg("Exam settings unavailable, using default duration")
		settings = model.ExamSettings{
			DurationSeconds:   model.DefaultDurationSeconds,
			PassingPercentage: model.DefaultPassingPercentage,
		}
		fellBack = true
	}

	markers := ev.markers
	if markers.Submitted {
		// A finished attempt is not resumed; the instructions are shown again.
		if err := c.markers.Save(Markers{LastResult: markers.LastResult}); err != nil {
			c.log.Warn().Err(err).Msg("Failed to reset session markers")
		}
		markers = Markers{}
	}

	next := Loaded(c.state, ev.questions, settings, markers, c.clock.Now())
	if next.Resumed {
		c.log.Info().Int("remaining_seconds", next.RemainingSeconds).Msg("Resumed exam in progress")
	}
	if fellBack && next.Phase != PhaseNoQuestions {
		next.Alert = &Alert{Level: AlertWarning, Message: settingsFallbackMessage}
	}
	return next
}

func (c *Controller) applyAction(ev actionEvent) (State, Effect) {
	switch ev.kind {
	case actionStart:
		next := Begin(c.state, c.clock.Now())
		if next.Phase == PhaseInProgress && c.state.Phase == PhaseNotStarted {
			err := c.markers.Save(Markers{
				Started:         true,
				StartedAt:       next.StartedAt,
				DurationSeconds: next.DurationSeconds,
			})
			if err != nil {
				c.log.Warn().Err(err).Msg("Failed to persist start marker")
			}
		}
		return next, EffectNone
	case actionNext:
		return Next(c.state), EffectNone
	case actionPrevious:
		return Previous(c.state), EffectNone
	case actionJump:
		return JumpTo(c.state, ev.index), EffectNone
	case actionSelect:
		return Select(c.state, ev.option)
	case actionToggleMark:
		return ToggleMark(c.state), EffectNone
	case actionSubmit:
		return BeginSubmit(c.state)
	case actionDismiss:
		return DismissAlert(c.state), EffectNone
	}
	return c.state, EffectNone
}

func (c *Controller) applySubmitResult(ev submitDoneEvent) State {
	switch {
	case ev.err == nil:
		next := CompleteSubmit(c.state, ev.report)
		if err := c.markers.Save(Markers{Submitted: true, LastResult: ev.report}); err != nil {
			c.log.Warn().Err(err).Msg("Failed to persist submitted marker")
		}
		c.log.Info().Int("answered", c.state.AnsweredCount()).Msg("Exam submitted")
		return next
	case errors.Is(ev.err, ErrUnauthorized):
		c.log.Warn().Msg("Submission rejected, re-authentication required")
		c.clearMarkers()
		return FailSubmit(c.state, true, "", c.clock.Now())
	case errors.Is(ev.err, context.DeadlineExceeded):
		c.log.Error().Err(ev.err).Msg("Submission timed out")
		return FailSubmit(c.state, false, submitTimeoutMessage, c.clock.Now())
	default:
		c.log.Error().Err(ev.err).Msg("Submission failed")
		msg := submitFailedMessage
		var um userMessager
		if errors.As(ev.err, &um) && um.UserMessage() != "" {
			msg = um.UserMessage()
		}
		return FailSubmit(c.state, false, msg, c.clock.Now())
	}
}

// commit installs next, runs its effect and notifies subscribers.
func (c *Controller) commit(ctx context.Context, next State, eff Effect) {
	c.state = next
	c.syncTicker()

	switch eff {
	case EffectSubmit:
		c.startSubmit(ctx, BuildSubmission(next))
	case EffectScheduleAdvance:
		c.scheduleAdvance(next.Current)
	}
	c.publish()
}

func (c *Controller) startSubmit(ctx context.Context, sub Submission) {
	go func() {
		sctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
		defer cancel()
		report, err := c.backend.Submit(sctx, sub)
		c.post(submitDoneEvent{report: report, err: err})
	}()
}

// scheduleAdvance registers the timer on the owner goroutine so the delay
// starts when the option was chosen.
func (c *Controller) scheduleAdvance(from int) {
	fire := c.clock.After(c.advanceDelay)
	go func() {
		select {
		case <-fire:
			c.post(advanceEvent{from: from})
		case <-c.done:
		}
	}()
}

func (c *Controller) syncTicker() {
	running := c.state.Phase == PhaseInProgress && c.state.TimerRunning
	switch {
	case running && c.ticker == nil:
		c.ticker = c.clock.NewTicker(TickInterval)
	case !running:
		c.stopTicker()
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

func (c *Controller) clearMarkers() {
	if err := c.markers.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to clear session markers")
	}
}

func (c *Controller) publish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = c.state
	for _, ch := range c.subs {
		select {
		case ch <- c.state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- c.state
		}
	}
}
