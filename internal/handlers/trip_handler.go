package handlers

import (
	"net/http"

	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

func currentRole(c *gin.Context) models.Role {
	return models.Role(c.GetString("role"))
}

func tripList(trips []models.Trip) []models.TripResponse {
	out := make([]models.TripResponse, 0, len(trips))
	for i := range trips {
		out = append(out, trips[i].Response())
	}
	return out
}

// RequestTrip - клиент создает заявку на поездку
func RequestTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.RequestTripInput
		if !validation.Bind(c, &req) {
			return
		}

		trip, err := trips.Request(c.Request.Context(), c.GetUint("user_id"), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, trip.Response())
	}
}

func ListMyTrips(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := trips.ListMine(c.Request.Context(), c.GetUint("user_id"), currentRole(c), models.TripStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tripList(list))
	}
}

func ListAvailableTrips(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := trips.ListAvailable(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, tripList(list))
	}
}

func GetTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		trip, err := trips.Get(c.Request.Context(), c.GetUint("user_id"), currentRole(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip.Response())
	}
}

// AcceptTrip - мотоциклист берет заявку. Второй принявший получает 409.
func AcceptTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		trip, err := trips.Accept(c.Request.Context(), c.GetUint("user_id"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip.Response())
	}
}

func UpdateTripStatus(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req services.UpdateTripStatusInput
		if !validation.Bind(c, &req) {
			return
		}

		trip, err := trips.UpdateStatus(c.Request.Context(), c.GetUint("user_id"), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip.Response())
	}
}

func CancelTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		// тело необязательно
		var req services.CancelTripInput
		if c.Request.ContentLength > 0 && !validation.Bind(c, &req) {
			return
		}

		trip, err := trips.Cancel(c.Request.Context(), c.GetUint("user_id"), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip.Response())
	}
}

func RateTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req services.RateTripInput
		if !validation.Bind(c, &req) {
			return
		}

		rating, err := trips.Rate(c.Request.Context(), c.GetUint("user_id"), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rating)
	}
}
