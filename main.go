package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/cache"
	"mototaxi-backend/internal/config"
	"mototaxi-backend/internal/db"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/routes"
	"mototaxi-backend/internal/services"
	"mototaxi-backend/internal/utils"
	"mototaxi-backend/internal/validation"
	"mototaxi-backend/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupBroadcast выбирает публикатор по BROADCAST_DRIVER и запускает
// ретранслятор, который доставляет события в websocket хаб этого экземпляра.
func setupBroadcast(ctx context.Context, cfg *config.Config, rdb *redis.Client, hub *websocket.Manager, log *logger.Logger) (broadcast.Publisher, error) {
	switch cfg.BroadcastDriver {
	case config.BroadcastAMQP:
		mq, err := broadcast.DialAMQP(ctx, cfg.AMQPURL, 5, log)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := mq.RunRelay(ctx, hub); err != nil {
				log.Error(logger.Entry{Action: "broadcast_relay_stopped", Err: err, Fields: logger.Fields{"driver": "amqp"}})
			}
		}()
		return mq, nil

	case config.BroadcastRedis:
		if rdb == nil {
			// без Redis работаем в пределах одного экземпляра
			log.Warn(logger.Entry{Action: "broadcast_fallback", Message: "Redis недоступен, используем memory"})
			return broadcast.NewMemory(hub), nil
		}
		go func() {
			if err := broadcast.RunRedisRelay(ctx, rdb, hub, log, nil); err != nil {
				log.Error(logger.Entry{Action: "broadcast_relay_stopped", Err: err, Fields: logger.Fields{"driver": "redis"}})
			}
		}()
		return broadcast.NewRedis(rdb), nil
	}

	return broadcast.NewMemory(hub), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("mototaxi-api", "info", "text").Fatal(logger.Entry{Action: "config_load_failed", Err: err})
	}

	log := logger.New("mototaxi-api", cfg.LogLevel, cfg.LogFormat)

	// Устанавливаем режим релиза для продакшена
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	validation.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	conn, err := db.ConnectWithRetry(ctx, cfg.Database, 5, 5*time.Second, log)
	if err != nil {
		log.Fatal(logger.Entry{Action: "db_connect_failed", Err: err})
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatal(logger.Entry{Action: "db_migrate_failed", Err: err})
	}

	// Подключение к Redis
	rdb, err := db.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn(logger.Entry{Action: "redis_unavailable", Message: "продолжаем без кэша и отзыва токенов", Err: err})
		rdb = nil
	} else {
		log.Info(logger.Entry{Action: "redis_connected", Fields: logger.Fields{"addr": cfg.Redis.Addr()}})
		defer rdb.Close()
	}

	jwt := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	revoker := utils.NewTokenRevoker(rdb)

	// Запускаем WebSocket менеджер
	hub := websocket.NewManager(services.NewChannelAuthorizer(conn), log)
	go hub.Run(ctx)

	pub, err := setupBroadcast(ctx, cfg, rdb, hub, log)
	if err != nil {
		log.Fatal(logger.Entry{Action: "broadcast_setup_failed", Err: err})
	}
	defer pub.Close()
	notifier := broadcast.NewNotifier(pub, log)
	defer notifier.Close()

	users := services.NewUserService(conn, jwt, revoker, log)
	packages := services.NewPackageService(conn, cache.New(rdb, cfg.CacheTTL), log)
	go packages.RunSweeper(ctx, cfg.PackageSweepEvery)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())

	// Добавляем middleware для сбора метрик
	r.Use(middleware.PrometheusMiddleware())

	// Настройка доверенных прокси
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	// Настройка CORS
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: len(cfg.CORSOrigins) > 0 && cfg.CORSOrigins[0] != "*",
		MaxAge:           12 * time.Hour,
	}))

	// Статическая директория для загруженных файлов
	r.Static("/uploads", cfg.UploadDir)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Проверка работоспособности системы
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{"database": "ok", "redis": "disabled"}

		if sqlDB, err := conn.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			checks["database"] = "down"
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if rdb.Ping(c.Request.Context()).Err() != nil {
				checks["redis"] = "down"
			}
		}

		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"checks":    checks,
			"broadcast": pub.Name(),
			"time":      time.Now().Format(time.RFC3339),
		})
	})

	routes.SetupRoutes(r.Group("/api"), routes.Deps{
		JWT:       jwt,
		Revoker:   revoker,
		Users:     users,
		Motorista: services.NewMotoristaService(conn, notifier, log),
		Trips:     services.NewTripService(conn, notifier, cfg.Fare, log),
		Packages:  packages,
		Admin:     services.NewAdminService(conn, users, notifier, log),
		UploadDir: cfg.UploadDir,
	})

	// WebSocket вне группы /api: токен в заголовке или ?token=
	r.GET("/ws", middleware.JWTAuth(jwt, revoker, users), websocket.Handler(hub))

	// Создаем HTTP сервер с настроенными таймаутами
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info(logger.Entry{Action: "server_started", Fields: logger.Fields{"port": cfg.Port, "broadcast": pub.Name()}})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(logger.Entry{Action: "server_failed", Err: err})
		}
	}()

	<-ctx.Done()
	log.Info(logger.Entry{Action: "shutdown_started", Message: "Получен сигнал завершения, закрываем соединения"})

	// Даем 30 секунд на завершение текущих запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(logger.Entry{Action: "shutdown_failed", Err: err})
		os.Exit(1)
	}

	log.Info(logger.Entry{Action: "shutdown_completed", Message: "Сервер корректно завершил работу"})
}
