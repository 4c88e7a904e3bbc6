package handlers

import (
	"net/http"

	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

type AuthResponse struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

func authResponse(res *services.AuthResult) AuthResponse {
	return AuthResponse{Token: res.Token, User: res.User.Response()}
}

func Register(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RegisterInput
		if !validation.Bind(c, &req) {
			return
		}

		res, err := users.Register(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, authResponse(res))
	}
}

func RegisterMotorista(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RegisterMotoristaInput
		if !validation.Bind(c, &req) {
			return
		}

		res, err := users.RegisterMotorista(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, authResponse(res))
	}
}

func Login(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.LoginInput
		if !validation.Bind(c, &req) {
			return
		}

		res, err := users.Login(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, authResponse(res))
	}
}

func Logout(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.CurrentClaims(c)
		if claims == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Требуется авторизация"})
			return
		}

		if err := users.Logout(c.Request.Context(), claims); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
