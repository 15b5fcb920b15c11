package service

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// DefaultExamSettings is materialized on first read.
var DefaultExamSettings = model.ExamSettings{
	DurationSeconds:   model.DefaultDurationSeconds,
	PassingPercentage: model.DefaultPassingPercentage,
}

type SettingService struct {
	store SettingStore
	log   zerolog.Logger
}

func NewSettingService(store SettingStore, log zerolog.Logger) *SettingService {
	return &SettingService{
		store: store,
		log:   log.With().Str("component", "setting_service").Logger(),
	}
}

// Get returns the exam settings, persisting the defaults on first access.
func (s *SettingService) Get(ctx context.Context) (*model.ExamSettings, error) {
	settings, err := s.store.GetOrCreate(ctx, DefaultExamSettings)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load exam settings")
		return nil, unavailable("get settings", err)
	}
	return settings, nil
}

// Update replaces the settings. durationMinutes is stored as seconds.
func (s *SettingService) Update(ctx context.Context, durationMinutes, passingPercentage int) (*model.ExamSettings, error) {
	if durationMinutes < model.MinDurationMinutes || durationMinutes > model.MaxDurationMinutes {
		return nil, invalid("Duration must be between %d and %d minutes", model.MinDurationMinutes, model.MaxDurationMinutes)
	}
	if passingPercentage < 0 || passingPercentage > 100 {
		return nil, invalid("Passing percentage must be between 0 and 100")
	}

	settings := &model.ExamSettings{
		DurationSeconds:   durationMinutes * 60,
		PassingPercentage: passingPercentage,
	}
	if err := s.store.Save(ctx, settings); err != nil {
		s.log.Error().Err(err).Msg("failed to save exam settings")
		return nil, unavailable("save settings", err)
	}

	s.log.Info().
		Int("duration_seconds", settings.DurationSeconds).
		Int("passing_percentage", settings.PassingPercentage).
		Msg("Exam settings updated")
	return settings, nil
}
