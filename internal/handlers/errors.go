package handlers

import (
	"errors"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/sjperalta/kredim-api/internal/amortization"
	"github.com/sjperalta/kredim-api/internal/services"
	"github.com/sjperalta/kredim-api/internal/storage"
	"github.com/sjperalta/kredim-api/pkg/logger"
)

// statusFor maps domain and service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, amortization.ErrInvalidAmount),
		errors.Is(err, amortization.ErrOverpayment),
		errors.Is(err, amortization.ErrNoOutstandingInstallments),
		errors.Is(err, amortization.ErrInvalidSchedule),
		errors.Is(err, storage.ErrInvalidContentType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrNoReceipt):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConcurrentModification),
		errors.Is(err, services.ErrDuplicate),
		errors.Is(err, amortization.ErrReversalConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInactiveAccount):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrInvalidPath):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes the error body. Unmapped errors are logged, reported to Sentry
// and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Handler] request failed", "path", c.FullPath(), "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		c.JSON(status, gin.H{"error": "beklenmeyen bir hata oluştu"})
		return
	}

	body := gin.H{"error": err.Error()}
	var over *amortization.OverpaymentError
	if errors.As(err, &over) {
		body["outstanding"] = over.Outstanding
	}
	c.JSON(status, body)
}
