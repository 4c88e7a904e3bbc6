package handlers

import (
	"net/http"

	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

func AdminListDrivers(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := admin.ListDrivers(c.Request.Context(), models.ValidationStatus(c.Query("validation_status")))
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]models.DriverProfileResponse, 0, len(list))
		for i := range list {
			out = append(out, list[i].Response())
		}
		c.JSON(http.StatusOK, out)
	}
}

// AdminValidateDriver - одобрение или отклонение мотоциклиста
func AdminValidateDriver(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req services.ValidateDriverInput
		if !validation.Bind(c, &req) {
			return
		}

		profile, err := admin.ValidateDriver(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile.Response())
	}
}

func AdminListUsers(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := admin.ListUsers(c.Request.Context(), models.Role(c.Query("role")))
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]models.UserResponse, 0, len(list))
		for i := range list {
			out = append(out, list[i].Response())
		}
		c.JSON(http.StatusOK, out)
	}
}

func AdminDeleteUser(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		if err := admin.DeleteUser(c.Request.Context(), c.GetUint("user_id"), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func AdminListTrips(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := admin.ListTrips(c.Request.Context(), models.TripStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tripList(list))
	}
}

type transactionFilter struct {
	Type   models.TransactionType `form:"type" binding:"omitempty,oneof=withdrawal purchase earning"`
	UserID uint                   `form:"user_id"`
}

func AdminListTransactions(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter transactionFilter
		if !validation.BindQuery(c, &filter) {
			return
		}

		list, err := admin.ListTransactions(c.Request.Context(), filter.Type, filter.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func AdminStats(admin *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := admin.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
