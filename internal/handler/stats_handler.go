package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// StatsHandler serves the admin dashboard counters.
type StatsHandler struct {
	statsService *service.StatsService
	log          zerolog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService *service.StatsService, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
		log:          log.With().Str("component", "stats_handler").Logger(),
	}
}

// GetOverview godoc
// GET /admin/stats
// Returns every counter in one response.
func (h *StatsHandler) GetOverview(c *gin.Context) {
	overview, err := h.statsService.Overview(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, overview)
}

// CountQuestions godoc
// GET /admin/stats/questions
func (h *StatsHandler) CountQuestions(c *gin.Context) {
	h.count(c, h.statsService.CountQuestions)
}

// CountUsers godoc
// GET /admin/stats/users
func (h *StatsHandler) CountUsers(c *gin.Context) {
	h.count(c, h.statsService.CountUsers)
}

// CountExams godoc
// GET /admin/stats/exams
func (h *StatsHandler) CountExams(c *gin.Context) {
	h.count(c, h.statsService.CountExams)
}

func (h *StatsHandler) count(c *gin.Context, fn func(context.Context) (int64, error)) {
	n, err := fn(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": n})
}
