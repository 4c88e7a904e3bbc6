package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// respondError переводит ошибку сервиса в HTTP ответ
func respondError(c *gin.Context, err error) {
	var verr *validation.Error

	switch {
	case errors.As(err, &verr):
		validation.Render(c, verr)

	case errors.Is(err, services.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"message": err.Error(),
			"errors":  validation.Errors{"status": {services.ErrInvalidTransition.Error()}},
		})

	case errors.Is(err, services.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrDriverNotApproved):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrNoUsablePackage),
		errors.Is(err, services.ErrPackageInactive),
		errors.Is(err, services.ErrTripNotCompleted):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrTripAlreadyTaken),
		errors.Is(err, services.ErrActiveTripExists),
		errors.Is(err, services.ErrAlreadyRated),
		errors.Is(err, services.ErrDriverNotAvailable):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})

	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
	}
}

// paramID читает числовой :id. При ошибке отвечает 404.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": services.ErrNotFound.Error()})
		return 0, false
	}
	return uint(id), true
}
