package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/assignment-fulfillment/internal/application/port"
	"github.com/garyjia/assignment-fulfillment/internal/domain/workflow"
)

// statusFor maps application errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrGuardFailed),
		errors.Is(err, port.ErrDuplicateAssignment),
		errors.Is(err, port.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, workflow.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrDependencyFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Internal errors are not echoed to the client.
func (h *Handlers) respondError(c *gin.Context, op string, err error) {
	code := statusFor(err)

	resp := Response{Success: false, Error: err.Error()}
	if code == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	if status, ok := workflow.StatusOf(err); ok {
		resp.Status = status.String()
	}
	for _, t := range workflow.AllowedOf(err) {
		resp.Allowed = append(resp.Allowed, t.String())
	}

	h.logger.Error("Request failed",
		"operation", op,
		"status_code", code,
		"error", err,
	)
	c.JSON(code, resp)
}
