package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"branchchat/model"
	"branchchat/service"
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrModelInvocation):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrNotFound), errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserExists), errors.Is(err, service.ErrNotAnonymous):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the {"error": ...} body.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := service.UserMessage(err)
	var te *service.TurnError
	if !errors.As(err, &te) && status != http.StatusInternalServerError {
		msg = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Errorf("[%s] %s %s failed, %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	} else {
		logger.Warnf("[%s] %s %s rejected, %s", c.GetString("requestId"), c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": msg}
	if te != nil {
		body["retryable"] = te.Retryable()
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	logger.Warnf("[%s] Invalid input, %s", c.GetString("requestId"), err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
}
