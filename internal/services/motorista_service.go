package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/validation"

	"gorm.io/gorm"
)

type UpdateStatusInput struct {
	Status models.DriverStatus `json:"status" binding:"required,driver_status"`
}

type UpdateLocationInput struct {
	Latitude  *float64 `json:"latitude" binding:"required,latitude"`
	Longitude *float64 `json:"longitude" binding:"required,longitude"`
}

type WithdrawInput struct {
	Amount        float64              `json:"amount" binding:"required,gt=0"`
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required,payment_method"`
}

type Wallet struct {
	Balance      float64              `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
}

type RatingSummary struct {
	Average float64         `json:"average"`
	Count   int             `json:"count"`
	Ratings []models.Rating `json:"ratings"`
}

type MotoristaService struct {
	db       *gorm.DB
	notifier *broadcast.Notifier
	log      *logger.Logger
}

func NewMotoristaService(db *gorm.DB, notifier *broadcast.Notifier, log *logger.Logger) *MotoristaService {
	return &MotoristaService{db: db, notifier: notifier, log: log}
}

func findDriverProfile(tx *gorm.DB, userID uint) (*models.DriverProfile, error) {
	var p models.DriverProfile
	err := tx.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("ошибка получения профиля мотористы: %w", err)
	}
	return &p, nil
}

// activeDriverTrip - принятая или начатая поездка мотористы
func activeDriverTrip(tx *gorm.DB, driverID uint) (*models.Trip, error) {
	var trip models.Trip
	err := tx.Where("driver_id = ? AND status IN ?", driverID,
		[]models.TripStatus{models.TripAccepted, models.TripInProgress}).
		Order("id DESC").First(&trip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("ошибка поиска активной поездки: %w", err)
	}
	return &trip, nil
}

func (s *MotoristaService) Profile(ctx context.Context, userID uint) (*models.DriverProfile, error) {
	p, err := findDriverProfile(s.db.WithContext(ctx).Preload("User"), userID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateStatus меняет доступность мотористы. Стать available может
// только одобренный моториста без незавершенной поездки.
func (s *MotoristaService) UpdateStatus(ctx context.Context, userID uint, status models.DriverStatus) (*models.DriverProfile, error) {
	if !status.Valid() {
		return nil, validation.NewError("status", "допустимые значения: available busy offline")
	}

	db := s.db.WithContext(ctx)
	p, err := findDriverProfile(db, userID)
	if err != nil {
		return nil, err
	}
	if status == models.DriverAvailable && !p.IsApproved() {
		return nil, ErrDriverNotApproved
	}

	if status != models.DriverBusy {
		trip, err := activeDriverTrip(db, userID)
		if err != nil {
			return nil, err
		}
		if trip != nil {
			return nil, ErrActiveTripExists
		}
	}

	if err := db.Model(p).Update("status", status).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления статуса: %w", err)
	}
	p.Status = status

	s.notifier.Notify(ctx, broadcast.ChannelDrivers, broadcast.EventDriverStatus, payload{
		"driver_id": userID,
		"status":    status,
	})
	s.log.Info(logger.Entry{Action: "driver_status_changed", UserID: userID, Fields: logger.Fields{"status": status}})
	return p, nil
}

// UpdateLocation сохраняет координаты и рассылает их в канал мотористы
// и в канал его текущей поездки.
func (s *MotoristaService) UpdateLocation(ctx context.Context, userID uint, lat, lng float64) (*models.DriverProfile, error) {
	if lat < -90 || lat > 90 {
		return nil, validation.NewError("latitude", "некорректная координата")
	}
	if lng < -180 || lng > 180 {
		return nil, validation.NewError("longitude", "некорректная координата")
	}

	db := s.db.WithContext(ctx)
	p, err := findDriverProfile(db, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := db.Model(p).Updates(map[string]interface{}{
		"latitude":            lat,
		"longitude":           lng,
		"location_updated_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления координат: %w", err)
	}
	p.Latitude, p.Longitude, p.LocationUpdatedAt = &lat, &lng, &now

	loc := payload{
		"driver_id": userID,
		"latitude":  lat,
		"longitude": lng,
		"at":        now.UTC(),
	}
	s.notifier.Notify(ctx, broadcast.DriverChannel(userID), broadcast.EventDriverLocation, loc)

	trip, err := activeDriverTrip(db, userID)
	if err != nil {
		s.log.Warn(logger.Entry{Action: "driver_location_trip_lookup_failed", UserID: userID, Err: err})
	} else if trip != nil {
		s.notifier.Notify(ctx, broadcast.TripChannel(trip.ID), broadcast.EventDriverLocation, loc)
	}
	return p, nil
}

func (s *MotoristaService) Wallet(ctx context.Context, userID uint) (*Wallet, error) {
	db := s.db.WithContext(ctx)
	p, err := findDriverProfile(db, userID)
	if err != nil {
		return nil, err
	}

	var txs []models.Transaction
	if err := db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	return &Wallet{Balance: p.WalletBalance, Transactions: txs}, nil
}

// Withdraw списывает сумму с кошелька. Списание условное (баланс не уйдет
// в минус), запись транзакции в той же транзакции БД.
func (s *MotoristaService) Withdraw(ctx context.Context, userID uint, in WithdrawInput) (*models.Transaction, error) {
	amount := roundMoney(in.Amount)
	if amount <= 0 {
		return nil, validation.NewError("amount", "должно быть больше 0")
	}

	var record *models.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DriverProfile{}).
			Where("user_id = ? AND wallet_balance >= ?", userID, amount).
			Update("wallet_balance", gorm.Expr("wallet_balance - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("ошибка списания: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if _, err := findDriverProfile(tx, userID); err != nil {
				return err
			}
			return ErrInsufficientBalance
		}

		p, err := findDriverProfile(tx, userID)
		if err != nil {
			return err
		}
		balance := roundMoney(p.WalletBalance)

		record = &models.Transaction{
			UserID:        userID,
			Amount:        amount,
			Type:          models.TransactionWithdrawal,
			Status:        models.TransactionCompleted,
			PaymentMethod: in.PaymentMethod,
			Description:   "Retiro de saldo",
			BalanceAfter:  &balance,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}
		return nil
	})

	switch {
	case errors.Is(err, ErrInsufficientBalance):
		middleware.TrackWithdrawal("insufficient")
		s.log.Warn(logger.Entry{Action: "withdrawal_rejected", UserID: userID, Err: err, Fields: logger.Fields{"amount": amount}})
		return nil, err
	case err != nil:
		middleware.TrackWithdrawal("error")
		return nil, err
	}

	middleware.TrackWithdrawal("ok")
	s.log.Info(logger.Entry{Action: "withdrawal_completed", UserID: userID, Fields: logger.Fields{"amount": amount}})
	return record, nil
}

func (s *MotoristaService) Ratings(ctx context.Context, userID uint) (*RatingSummary, error) {
	db := s.db.WithContext(ctx)
	if _, err := findDriverProfile(db, userID); err != nil {
		return nil, err
	}

	var ratings []models.Rating
	if err := db.Where("driver_id = ?", userID).Order("created_at DESC, id DESC").Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения оценок: %w", err)
	}

	summary := &RatingSummary{Count: len(ratings), Ratings: ratings}
	if len(ratings) > 0 {
		total := 0
		for _, r := range ratings {
			total += r.Score
		}
		summary.Average = roundMoney(float64(total) / float64(len(ratings)))
	}
	return summary, nil
}
