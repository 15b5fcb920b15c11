package service

import (
	"context"
	"sync"
)

// StatsOverview consolidates the admin dashboard counters.
type StatsOverview struct {
	Questions int64 `json:"questions"`
	Users     int64 `json:"users"`
	Exams     int64 `json:"exams"`
}

// StatsService serves admin dashboard counters.
type StatsService struct {
	questions *QuestionService
	auth      *AuthService
	exams     *ExamService
}

// NewStatsService creates a new StatsService.
func NewStatsService(questions *QuestionService, auth *AuthService, exams *ExamService) *StatsService {
	return &StatsService{questions: questions, auth: auth, exams: exams}
}

func (s *StatsService) CountQuestions(ctx context.Context) (int64, error) {
	return s.questions.Count(ctx)
}

func (s *StatsService) CountUsers(ctx context.Context) (int64, error) {
	return s.auth.CountUsers(ctx)
}

func (s *StatsService) CountExams(ctx context.Context) (int64, error) {
	return s.exams.CountSubmissions(ctx)
}

// Overview fetches all counters concurrently.
func (s *StatsService) Overview(ctx context.Context) (*StatsOverview, error) {
	var (
		out  StatsOverview
		errs [3]error
		wg   sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		out.Questions, errs[0] = s.CountQuestions(ctx)
	}()
	go func() {
		defer wg.Done()
		out.Users, errs[1] = s.CountUsers(ctx)
	}()
	go func() {
		defer wg.Done()
		out.Exams, errs[2] = s.CountExams(ctx)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return &out, nil
}
