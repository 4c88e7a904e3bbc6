package main

import (
	"context"
	"fmt"
	"time"

	"mototaxi-backend/internal/config"
	"mototaxi-backend/internal/db"
	"mototaxi-backend/internal/logger"

	"gorm.io/gorm"
)

// connector открывает конфигурацию, БД и логгер для команды
type connector func(ctx context.Context) (*config.Config, *gorm.DB, *logger.Logger, error)

// connect загружает конфигурацию и открывает БД с коротким числом попыток
func connect(ctx context.Context) (*config.Config, *gorm.DB, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	log := logger.New("motoctl", cfg.LogLevel, cfg.LogFormat)

	conn, err := db.ConnectWithRetry(ctx, cfg.Database, 3, 2*time.Second, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("подключение к БД: %w", err)
	}
	return cfg, conn, log, nil
}
