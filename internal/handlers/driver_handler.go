package handlers

import (
	"net/http"

	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

func GetDriverProfile(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := drivers.Profile(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile.Response())
	}
}

// UpdateDriverStatus - available / offline / busy
func UpdateDriverStatus(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.UpdateStatusInput
		if !validation.Bind(c, &req) {
			return
		}

		profile, err := drivers.UpdateStatus(c.Request.Context(), c.GetUint("user_id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile.Response())
	}
}

func UpdateDriverLocation(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.UpdateLocationInput
		if !validation.Bind(c, &req) {
			return
		}

		profile, err := drivers.UpdateLocation(c.Request.Context(), c.GetUint("user_id"), *req.Latitude, *req.Longitude)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile.Response())
	}
}

func GetWallet(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := drivers.Wallet(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, wallet)
	}
}

func Withdraw(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.WithdrawInput
		if !validation.Bind(c, &req) {
			return
		}

		tx, err := drivers.Withdraw(c.Request.Context(), c.GetUint("user_id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, tx)
	}
}

func GetDriverRatings(drivers *services.MotoristaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := drivers.Ratings(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
