package handlers

import (
	"net/http"

	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/validation"

	"github.com/gin-gonic/gin"
)

// ListActivePackages - каталог активных форфейтов
func ListActivePackages(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := packages.ListActive(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func PurchasePackage(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req services.PurchaseInput
		if !validation.Bind(c, &req) {
			return
		}

		purchase, err := packages.Purchase(c.Request.Context(), c.GetUint("user_id"), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, purchase)
	}
}

func ListMyPackages(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := packages.ListMine(c.Request.Context(), c.GetUint("user_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func AdminListPackages(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := packages.ListAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func AdminCreatePackage(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.PackageInput
		if !validation.Bind(c, &req) {
			return
		}

		p, err := packages.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func AdminUpdatePackage(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var req services.PackageInput
		if !validation.Bind(c, &req) {
			return
		}

		p, err := packages.Update(c.Request.Context(), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// AdminDeactivatePackage не удаляет запись: купленные форфейты продолжают работать
func AdminDeactivatePackage(packages *services.PackageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		p, err := packages.Deactivate(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
