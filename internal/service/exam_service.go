package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/resultlog"
	"github.com/stemsi/exstem-quiz/internal/scoring"
)

// Submission is a verified exam submission.
type Submission struct {
	UserID    uuid.UUID
	Email     string
	Answers   map[string]string
	TimeSpent string
}

// ExamService scores submissions and records their results.
type ExamService struct {
	questions QuestionStore
	results   ResultStore
	trail     AuditTrail
	feed      ResultPublisher
	log       zerolog.Logger
}

// NewExamService creates a new ExamService. trail and feed may be nil.
func NewExamService(questions QuestionStore, results ResultStore, trail AuditTrail, feed ResultPublisher, log zerolog.Logger) *ExamService {
	return &ExamService{
		questions: questions,
		results:   results,
		trail:     trail,
		feed:      feed,
		log:       log.With().Str("component", "exam_service").Logger(),
	}
}

// Submit scores sub against the canonical bank and persists exactly one Result.
// Audit and live-feed failures are logged and never returned.
func (s *ExamService) Submit(ctx context.Context, sub Submission) (*model.Result, error) {
	bank, err := s.questions.ListCanonical(ctx)
	if err != nil {
		return nil, unavailable("load bank", err)
	}

	outcome := scoring.Score(sub.Answers, bank)

	res := &model.Result{
		UserID:          sub.UserID,
		Email:           sub.Email,
		Score:           outcome.Correct,
		TotalQuestions:  outcome.Total,
		Percentage:      model.NewPercentage(outcome.Percentage),
		TimeSpent:       sub.TimeSpent,
		DetailedResults: outcome.Details,
	}

	if err := s.results.Create(ctx, res); err != nil {
		s.log.Error().Err(err).Str("email", sub.Email).Msg("Failed to persist result")
		return nil, unavailable("persist result", err)
	}

	subLog := s.log.With().
		Str("result_id", res.ID.String()).
		Str("email", res.Email).
		Logger()

	subLog.Info().
		Int("score", res.Score).
		Int("total", res.TotalQuestions).
		Str("percentage", res.Percentage.StringFixed(2)).
		Msg("Exam submitted and graded")

	// The result is already durable; side effects must outlive a client disconnect.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if s.trail != nil {
		if err := s.trail.Record(sideCtx, resultlog.NewEntry(res)); err != nil {
			subLog.Error().Err(err).Msg("Result log write failed")
		}
	}

	if s.feed != nil {
		ev := repository.ResultEvent{
			ResultID:       res.ID.String(),
			Email:          res.Email,
			Score:          res.Score,
			TotalQuestions: res.TotalQuestions,
			Percentage:     res.Percentage,
			TimeSpent:      res.TimeSpent,
			RecordedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := s.feed.Publish(sideCtx, ev); err != nil {
			subLog.Warn().Err(err).Msg("Result feed publish failed")
		}
	}

	return res, nil
}

// History returns every result recorded for email, newest first.
func (s *ExamService) History(ctx context.Context, email string) ([]model.Result, error) {
	results, err := s.results.ListByEmail(ctx, email)
	if err != nil {
		return nil, unavailable("list results", err)
	}
	if results == nil {
		results = []model.Result{}
	}
	return results, nil
}

// CountSubmissions returns how many results were recorded.
func (s *ExamService) CountSubmissions(ctx context.Context) (int64, error) {
	n, err := s.results.Count(ctx)
	if err != nil {
		return 0, unavailable("count results", err)
	}
	return n, nil
}
