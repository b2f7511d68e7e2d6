package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inventcures/virtual-tumor-board-sub003/internal/audit"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/domain"
	"github.com/inventcures/virtual-tumor-board-sub003/internal/middleware"
)

var errAuditDisabled = errors.New("audit store is disabled")

// respondError maps err to a status code and writes a PipelineError body.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var validationErr *domain.ValidationError
	var maxBytesErr *http.MaxBytesError
	var pipelineErr *domain.PipelineError

	status := http.StatusInternalServerError
	body := domain.NewPipelineError(domain.ErrInternalServer, "internal server error", "", requestID)

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		body = domain.NewPipelineError(domain.ErrValidation, validationErr.Error(), validationErr.Field, requestID)
	case errors.As(err, &maxBytesErr):
		status = http.StatusRequestEntityTooLarge
		body = domain.NewPipelineError(domain.ErrInvalidInput, "request body too large", "", requestID)
	case errors.Is(err, audit.ErrNotFound):
		status = http.StatusNotFound
		body = domain.NewPipelineError(domain.ErrNotFound, err.Error(), "", requestID)
	case errors.Is(err, errAuditDisabled):
		status = http.StatusServiceUnavailable
		body = domain.NewPipelineError(domain.ErrStorageError, err.Error(), "", requestID)
	case errors.As(err, &pipelineErr):
		status = statusForCode(pipelineErr.Code)
		pipelineErr.RequestID = requestID
		body = pipelineErr
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, body)
}

func statusForCode(code string) int {
	switch code {
	case domain.ErrInvalidInput, domain.ErrValidation:
		return http.StatusBadRequest
	case domain.ErrNotFound:
		return http.StatusNotFound
	case domain.ErrOracleUnavailable:
		return http.StatusServiceUnavailable
	case domain.ErrExtractionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
