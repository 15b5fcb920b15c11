package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// uploadField is the multipart field carrying a question file.
const uploadField = "questions"

// QuestionHandler handles admin question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
	maxUploadBytes  int64
	log             zerolog.Logger
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService, maxUploadBytes int64, log zerolog.Logger) *QuestionHandler {
	return &QuestionHandler{
		questionService: questionService,
		maxUploadBytes:  maxUploadBytes,
		log:             log.With().Str("component", "question_handler").Logger(),
	}
}

// ListQuestions godoc
// GET /admin/questions
// Returns the bank with answers, newest first.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, err := h.questionService.ListForAdmin(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, questions)
}

// AddQuestion godoc
// POST /add-question
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Add(c.Request.Context(), req.Input())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, q)
}

// ReplaceQuestion godoc
// PUT /admin/questions/:id
func (h *QuestionHandler) ReplaceQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Replace(c.Request.Context(), id, req.Input())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, q)
}

// DeleteQuestion godoc
// DELETE /admin/questions/:id
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), id); err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Question deleted successfully"})
}

// DeleteAllQuestions godoc
// DELETE /admin/questions
func (h *QuestionHandler) DeleteAllQuestions(c *gin.Context) {
	n, err := h.questionService.DeleteAll(c.Request.Context())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deletedCount": n})
}

// AddBulkQuestions godoc
// POST /add-bulk-questions
// Malformed entries are skipped; the request fails only if none is valid.
func (h *QuestionHandler) AddBulkQuestions(c *gin.Context) {
	var req model.BulkQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	n, err := h.questionService.BulkInsert(c.Request.Context(), req.Questions)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"insertedCount": n})
}

// UploadQuestions godoc
// POST /upload-questions
// Accepts a multipart JSON file holding an array of questions.
func (h *QuestionHandler) UploadQuestions(c *gin.Context) {
	// Leave headroom for the multipart envelope around the file itself.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+64<<10)

	file, header, err := c.Request.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
			return
		}
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}
	if !isJSONUpload(header.Filename, header.Header.Get("Content-Type")) {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}

	n, err := h.questionService.Import(c.Request.Context(), file)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}

	h.log.Info().Str("file", header.Filename).Int64("inserted", n).Msg("Questions uploaded")
	response.Success(c, http.StatusCreated, gin.H{"insertedCount": n})
}

func isJSONUpload(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return true
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), "application/json")
}
