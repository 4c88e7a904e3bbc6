package routes

import (
	"mototaxi-backend/internal/handlers"
	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// Deps - всё, что нужно обработчикам API
type Deps struct {
	JWT       *utils.JWTManager
	Revoker   *utils.TokenRevoker
	Users     *services.UserService
	Motorista *services.MotoristaService
	Trips     *services.TripService
	Packages  *services.PackageService
	Admin     *services.AdminService
	UploadDir string
}

func SetupRoutes(api *gin.RouterGroup, d Deps) {
	cliente := middleware.RequireRole(string(models.RoleClient))
	motorista := middleware.RequireRole(string(models.RoleMotorista))

	// Публичные маршруты для аутентификации
	api.POST("/register", handlers.Register(d.Users))
	api.POST("/register/motorista", handlers.RegisterMotorista(d.Users))
	api.POST("/login", handlers.Login(d.Users))

	// Защищенные маршруты (требуют аутентификации)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(d.JWT, d.Revoker, d.Users))
	{
		protected.POST("/logout", handlers.Logout(d.Users))

		// Профиль
		protected.GET("/me", handlers.GetProfile(d.Users))
		protected.PUT("/me", handlers.UpdateProfile(d.Users))
		protected.DELETE("/me", handlers.DeleteAccount(d.Users))
		protected.PUT("/me/password", handlers.ChangePassword(d.Users))

		// Загрузка файлов
		protected.POST("/uploads", handlers.UploadFile(d.UploadDir))

		// Поездки
		protected.POST("/viajes", cliente, handlers.RequestTrip(d.Trips))
		protected.GET("/viajes", handlers.ListMyTrips(d.Trips))
		protected.GET("/viajes/disponibles", motorista, handlers.ListAvailableTrips(d.Trips))
		protected.GET("/viajes/:id", handlers.GetTrip(d.Trips))
		protected.POST("/viajes/:id/aceptar", motorista, handlers.AcceptTrip(d.Trips))
		protected.PUT("/viajes/:id/estado", motorista, handlers.UpdateTripStatus(d.Trips))
		protected.POST("/viajes/:id/cancelar", cliente, handlers.CancelTrip(d.Trips))
		protected.POST("/viajes/:id/calificar", cliente, handlers.RateTrip(d.Trips))

		// Мотоциклист
		moto := protected.Group("/motorista", motorista)
		moto.GET("/perfil", handlers.GetDriverProfile(d.Motorista))
		moto.PUT("/estado", handlers.UpdateDriverStatus(d.Motorista))
		moto.PUT("/ubicacion", handlers.UpdateDriverLocation(d.Motorista))
		moto.GET("/billetera", handlers.GetWallet(d.Motorista))
		moto.POST("/retiros", handlers.Withdraw(d.Motorista))
		moto.GET("/calificaciones", handlers.GetDriverRatings(d.Motorista))

		// Форфейты
		protected.GET("/forfaits", handlers.ListActivePackages(d.Packages))
		protected.POST("/forfaits/:id/comprar", cliente, handlers.PurchasePackage(d.Packages))
		protected.GET("/mis-forfaits", cliente, handlers.ListMyPackages(d.Packages))

		// Администрирование
		admin := protected.Group("/admin", middleware.RequireRole(string(models.RoleAdmin)))
		admin.GET("/motoristas", handlers.AdminListDrivers(d.Admin))
		admin.PUT("/motoristas/:id/validacion", handlers.AdminValidateDriver(d.Admin))
		admin.GET("/usuarios", handlers.AdminListUsers(d.Admin))
		admin.DELETE("/usuarios/:id", handlers.AdminDeleteUser(d.Admin))
		admin.GET("/viajes", handlers.AdminListTrips(d.Admin))
		admin.GET("/forfaits", handlers.AdminListPackages(d.Packages))
		admin.POST("/forfaits", handlers.AdminCreatePackage(d.Packages))
		admin.PUT("/forfaits/:id", handlers.AdminUpdatePackage(d.Packages))
		admin.DELETE("/forfaits/:id", handlers.AdminDeactivatePackage(d.Packages))
		admin.GET("/transacciones", handlers.AdminListTransactions(d.Admin))
		admin.GET("/estadisticas", handlers.AdminStats(d.Admin))
	}
}
