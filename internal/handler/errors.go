package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// failFromError maps the service error taxonomy onto the response envelope.
// Messages meant for the user are passed through verbatim.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		conflict   *service.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, validation.Message)
	case errors.As(err, &notFound):
		response.FailWithMessage(c, http.StatusNotFound, response.ErrNotFound, notFound.Message)
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.As(err, &conflict):
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, conflict.Message)
	case errors.Is(err, service.ErrConflict):
		response.Fail(c, http.StatusConflict, response.ErrConflict)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrTokenExpired):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired)
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrTokenRevoked):
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
	case errors.Is(err, service.ErrUnavailable):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Storage unavailable")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
