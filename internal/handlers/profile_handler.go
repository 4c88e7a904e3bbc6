package handlers

import (
	"net/http"

	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

func GetProfile(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := users.Profile(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user.Response())
	}
}

func UpdateProfile(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.UpdateProfileInput
		if !validation.Bind(c, &req) {
			return
		}

		user, err := users.UpdateProfile(c.Request.Context(), c.GetUint("user_id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user.Response())
	}
}

func ChangePassword(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.ChangePasswordInput
		if !validation.Bind(c, &req) {
			return
		}

		if err := users.ChangePassword(c.Request.Context(), c.GetUint("user_id"), req); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Пароль изменен"})
	}
}

// DeleteAccount - удаление собственного аккаунта
func DeleteAccount(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := users.DeleteAccount(c.Request.Context(), c.GetUint("user_id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
