package db

import (
	"context"
	"fmt"
	"time"

	"mototaxi-backend/internal/config"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// BuildDSN собирает строку подключения. DATABASE_URL (postgres://...) имеет
// приоритет и переводится в формат key=value.
func BuildDSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.URL != "" {
		dsn, err := pq.ParseURL(cfg.URL)
		if err != nil {
			return "", fmt.Errorf("неверный DATABASE_URL: %w", err)
		}
		return dsn, nil
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
}

// GormConfig - общая конфигурация gorm: ошибки драйвера переводятся
// в gorm.ErrDuplicatedKey и т.п.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Error),
		TranslateError: true,
	}
}

// ConnectWithRetry открывает соединение с PostgreSQL, повторяя попытки
func ConnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxAttempts int, delay time.Duration, log *logger.Logger) (*gorm.DB, error) {
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	var conn *gorm.DB
	for i := 0; i < maxAttempts; i++ {
		conn, err = gorm.Open(postgres.Open(dsn), GormConfig())
		if err == nil {
			// Настройка пула соединений с БД
			sqlDB, err := conn.DB()
			if err != nil {
				return nil, fmt.Errorf("не удалось получить доступ к sql.DB: %w", err)
			}
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return conn, nil
		}

		log.Warn(logger.Entry{
			Action:  "db_connect_attempt_failed",
			Message: fmt.Sprintf("попытка %d из %d", i+1, maxAttempts),
			Err:     err,
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("не удалось подключиться к базе данных после %d попыток: %w", maxAttempts, err)
}

// Migrate выполняет автоматическую миграцию всех моделей
// activeTripIndex - не больше одной незавершенной поездки на клиента.
// Частичный индекс понимают и PostgreSQL, и SQLite.
const activeTripIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_trips_one_active_per_client
	ON trips (client_id) WHERE status IN ('requested', 'accepted', 'in_progress')`

func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("ошибка миграции базы данных: %w", err)
	}
	if err := conn.Exec(activeTripIndex).Error; err != nil {
		return fmt.Errorf("ошибка создания индекса активных поездок: %w", err)
	}
	return nil
}
