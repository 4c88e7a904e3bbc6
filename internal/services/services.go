// Package services содержит бизнес-логику маркетплейса: пользователи,
// мотористы, поездки, форфеты и администрирование. Сервисы работают
// через GORM, события публикуют после коммита транзакции.
package services

import "time"

// payload - данные события для рассылки
type payload = map[string]interface{}

type clock func() time.Time
