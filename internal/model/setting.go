package model

import "time"

const (
	DefaultDurationSeconds   = 7200
	DefaultPassingPercentage = 50

	MinDurationMinutes = 1
	MaxDurationMinutes = 180
)

// ExamSettings is the singleton exam configuration.
type ExamSettings struct {
	DurationSeconds   int       `json:"durationSeconds"`
	PassingPercentage int       `json:"passingPercentage"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// UpdateExamSettingsRequest is the admin payload. Duration is in minutes.
type UpdateExamSettingsRequest struct {
	Duration          *int `json:"duration" binding:"required"`
	PassingPercentage *int `json:"passingPercentage" binding:"required"`
}
