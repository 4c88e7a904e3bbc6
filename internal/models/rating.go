package models

import (
	"time"
)

// Rating - оценка поездки клиентом, одна на поездку
type Rating struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TripID    uint      `json:"trip_id" gorm:"uniqueIndex;not null"`
	DriverID  uint      `json:"driver_id" gorm:"not null;index"`
	ClientID  uint      `json:"client_id" gorm:"not null"`
	Score     int       `json:"score" gorm:"not null"`
	Comment   string    `json:"comment" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}
