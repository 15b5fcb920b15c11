package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// ExamHandler serves the exam taker endpoints.
type ExamHandler struct {
	questionService *service.QuestionService
	settingService  *service.SettingService
	examService     *service.ExamService
	log             zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(
	questionService *service.QuestionService,
	settingService *service.SettingService,
	examService *service.ExamService,
	log zerolog.Logger,
) *ExamHandler {
	return &ExamHandler{
		questionService: questionService,
		settingService:  settingService,
		examService:     examService,
		log:             log.With().Str("component", "exam_handler").Logger(),
	}
}

// GetQuestions godoc
// GET /get-questions
// Returns the whole bank, shuffled, without answers. An empty bank is an empty list.
func (h *ExamHandler) GetQuestions(c *gin.Context) {
	questions, err := h.questionService.ListForExam(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// GetExamSettings godoc
// GET /exam-settings
func (h *ExamHandler) GetExamSettings(c *gin.Context) {
	settings, err := h.settingService.Get(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}

// SubmitExam godoc
// POST /submit-exam
// Scores the submission against the current bank and records one result.
func (h *ExamHandler) SubmitExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Results are recorded under the token's principal only.
	if req.UserID != claims.UserID || !strings.EqualFold(req.Email, claims.Email) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
		return
	}

	result, err := h.examService.Submit(c.Request.Context(), service.Submission{
		UserID:    userID,
		Email:     claims.Email,
		Answers:   req.Answers,
		TimeSpent: req.TimeSpent,
	})
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, result.Report())
}

// GetUserResults godoc
// GET /user-results/:email
// Returns the caller's own results, newest first.
func (h *ExamHandler) GetUserResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	email := strings.ToLower(strings.TrimSpace(c.Param("email")))
	if email != strings.ToLower(claims.Email) {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	results, err := h.examService.History(c.Request.Context(), email)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, results)
}
