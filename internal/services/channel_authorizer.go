package services

import (
	"context"
	"errors"
	"fmt"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/models"

	"gorm.io/gorm"
)

// ChannelAuthorizer решает, может ли пользователь подписаться на канал
type ChannelAuthorizer struct {
	db *gorm.DB
}

func NewChannelAuthorizer(db *gorm.DB) *ChannelAuthorizer {
	return &ChannelAuthorizer{db: db}
}

func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uint, role models.Role, channel string) (bool, error) {
	kind, id := broadcast.ParseChannel(channel)
	if kind == broadcast.KindUnknown {
		return false, nil
	}
	if role == models.RoleAdmin {
		return true, nil
	}

	db := a.db.WithContext(ctx)

	switch kind {
	case broadcast.KindDrivers:
		return true, nil

	case broadcast.KindAvailableTrips:
		if role != models.RoleMotorista {
			return false, nil
		}
		p, err := findDriverProfile(db, userID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		} else if err != nil {
			return false, err
		}
		return p.IsApproved(), nil

	case broadcast.KindTrip:
		var trip models.Trip
		err := db.Select("id", "client_id", "driver_id").First(&trip, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		} else if err != nil {
			return false, fmt.Errorf("ошибка проверки доступа к каналу: %w", err)
		}
		return trip.IsParticipant(userID), nil

	case broadcast.KindDriver:
		if id == userID {
			return true, nil
		}
		// клиент видит мотористу только во время своей поездки с ним
		var count int64
		err := db.Model(&models.Trip{}).
			Where("client_id = ? AND driver_id = ? AND status IN ?", userID, id,
				[]models.TripStatus{models.TripAccepted, models.TripInProgress}).
			Count(&count).Error
		if err != nil {
			return false, fmt.Errorf("ошибка проверки доступа к каналу: %w", err)
		}
		return count > 0, nil
	}
	return false, nil
}
