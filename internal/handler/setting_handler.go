package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

type SettingHandler struct {
	settingService *service.SettingService
	log            zerolog.Logger
}

func NewSettingHandler(settingService *service.SettingService, log zerolog.Logger) *SettingHandler {
	return &SettingHandler{
		settingService: settingService,
		log:            log.With().Str("component", "setting_handler").Logger(),
	}
}

// UpdateExamSettings godoc
// POST /update-exam-settings
// Duration arrives in minutes and is stored in seconds.
func (h *SettingHandler) UpdateExamSettings(c *gin.Context) {
	var req model.UpdateExamSettingsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	settings, err := h.settingService.Update(c.Request.Context(), *req.Duration, *req.PassingPercentage)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, settings)
}
