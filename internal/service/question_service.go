package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// QuestionService handles question bank business logic.
type QuestionService struct {
	store QuestionStore
	cache QuestionPayloadCache
	log   zerolog.Logger

	// unbumped is set while a mutation could not advance the cache
	// generation; the cache is bypassed until a bump succeeds.
	unbumped atomic.Bool
}

// NewQuestionService creates a new QuestionService. cache may be nil.
func NewQuestionService(store QuestionStore, cache QuestionPayloadCache, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// ListForExam returns the whole bank without answers, freshly shuffled on every call.
// An empty bank yields an empty slice.
func (s *QuestionService) ListForExam(ctx context.Context) ([]model.ExamQuestion, error) {
	payload, err := s.examPayload(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.ExamQuestion, len(payload))
	copy(out, payload)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// examPayload returns the answer-free bank in canonical order, cache first.
func (s *QuestionService) examPayload(ctx context.Context) ([]model.ExamQuestion, error) {
	gen, cached := s.cacheGeneration(ctx)
	if cached {
		payload, ok, err := s.cache.Get(ctx, gen)
		if err != nil {
			s.log.Warn().Err(err).Msg("Question cache read failed")
		} else if ok {
			return payload, nil
		}
	}

	bank, err := s.store.ListCanonical(ctx)
	if err != nil {
		return nil, unavailable("list questions", err)
	}

	payload := make([]model.ExamQuestion, len(bank))
	for i, q := range bank {
		payload[i] = q.ForExam()
	}

	if cached {
		if err := s.cache.Set(ctx, gen, payload); err != nil {
			s.log.Warn().Err(err).Msg("Question cache write failed")
		}
	}
	return payload, nil
}

// cacheGeneration returns the bank generation to read and write the payload
// under. ok is false when the cache must be bypassed.
func (s *QuestionService) cacheGeneration(ctx context.Context) (gen int64, ok bool) {
	if s.cache == nil {
		return 0, false
	}
	if s.unbumped.Load() {
		if err := s.cache.Bump(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Question cache still not invalidated, reading from store")
			return 0, false
		}
		s.unbumped.Store(false)
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Question cache generation read failed")
		return 0, false
	}
	return gen, true
}

// ListForAdmin returns the bank with answers, newest first.
func (s *QuestionService) ListForAdmin(ctx context.Context) ([]model.Question, error) {
	questions, err := s.store.ListNewestFirst(ctx)
	if err != nil {
		return nil, unavailable("list questions", err)
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}

// Add validates and stores a new question.
func (s *QuestionService) Add(ctx context.Context, in model.QuestionInput) (*model.Question, error) {
	q, err := buildQuestion(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, q); err != nil {
		return nil, unavailable("create question", err)
	}
	s.invalidate(ctx)
	return q, nil
}

// Replace overwrites an existing question wholesale.
func (s *QuestionService) Replace(ctx context.Context, id uuid.UUID, in model.QuestionInput) (*model.Question, error) {
	q, err := buildQuestion(in)
	if err != nil {
		return nil, err
	}
	q.ID = id
	if err := s.store.Replace(ctx, q); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Question not found"}
		}
		return nil, unavailable("replace question", err)
	}
	s.invalidate(ctx)
	return q, nil
}

// Delete removes one question.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Message: "Question not found"}
		}
		return unavailable("delete question", err)
	}
	s.invalidate(ctx)
	return nil
}

// DeleteAll empties the bank and returns how many questions were removed.
func (s *QuestionService) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, unavailable("delete questions", err)
	}
	if n == 0 {
		return 0, &NotFoundError{Message: "No questions to delete"}
	}
	s.invalidate(ctx)
	return n, nil
}

// BulkInsert stores every well-formed entry and silently drops the rest.
// It fails only when no entry survives.
func (s *QuestionService) BulkInsert(ctx context.Context, entries []json.RawMessage) (int64, error) {
	valid := make([]model.Question, 0, len(entries))
	for _, raw := range entries {
		var in model.QuestionInput
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		q, err := buildQuestion(in)
		if err != nil {
			continue
		}
		valid = append(valid, *q)
	}

	if len(valid) == 0 {
		return 0, invalid("No valid questions provided")
	}

	n, err := s.store.BulkCreate(ctx, valid)
	if err != nil {
		return 0, unavailable("bulk insert questions", err)
	}
	s.log.Info().Int("received", len(entries)).Int64("inserted", n).Msg("Bulk questions inserted")
	s.invalidate(ctx)
	return n, nil
}

// Import reads a JSON array of questions and bulk inserts it.
func (s *QuestionService) Import(ctx context.Context, r io.Reader) (int64, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read upload: %w", err)
	}

	var probe any
	if err := json.Unmarshal(raw, &probe); err != nil {
		return 0, invalid("Invalid JSON format")
	}
	if _, ok := probe.([]any); !ok {
		return 0, invalid("Questions must be an array")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, invalid("Invalid JSON format")
	}
	return s.BulkInsert(ctx, entries)
}

// Count returns the bank size.
func (s *QuestionService) Count(ctx context.Context) (int64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, unavailable("count questions", err)
	}
	return n, nil
}

func (s *QuestionService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.unbumped.Store(true)
		s.log.Warn().Err(err).Msg("Question cache invalidation failed")
	}
}

// buildQuestion enforces the bank invariants on admin input.
func buildQuestion(in model.QuestionInput) (*model.Question, error) {
	if strings.TrimSpace(in.Question) == "" {
		return nil, invalid("Question text is required")
	}
	if len(in.Options) != model.OptionCount {
		return nil, invalid("Exactly %d options are required", model.OptionCount)
	}
	for _, opt := range in.Options {
		if strings.TrimSpace(opt) == "" {
			return nil, invalid("Options must not be empty")
		}
	}
	if in.CorrectAnswer == "" {
		return nil, invalid("Correct answer is required")
	}

	member := false
	for _, opt := range in.Options {
		if opt == in.CorrectAnswer {
			member = true
			break
		}
	}
	if !member {
		return nil, invalid("Correct answer must be one of the options")
	}

	opts := make([]string, len(in.Options))
	copy(opts, in.Options)
	return &model.Question{
		Question:      in.Question,
		Options:       opts,
		CorrectAnswer: in.CorrectAnswer,
	}, nil
}
