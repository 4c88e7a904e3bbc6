package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/config"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/middleware"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/validation"

	"gorm.io/gorm"
)

type RequestTripInput struct {
	OriginLat          *float64             `json:"origin_lat" binding:"required,latitude"`
	OriginLng          *float64             `json:"origin_lng" binding:"required,longitude"`
	OriginAddress      string               `json:"origin_address" binding:"omitempty,max=255"`
	DestinationLat     *float64             `json:"destination_lat" binding:"required,latitude"`
	DestinationLng     *float64             `json:"destination_lng" binding:"required,longitude"`
	DestinationAddress string               `json:"destination_address" binding:"omitempty,max=255"`
	PaymentMethod      models.PaymentMethod `json:"payment_method" binding:"omitempty,payment_method"`
	UsePackage         bool                 `json:"use_package"`
}

type UpdateTripStatusInput struct {
	Status models.TripStatus `json:"status" binding:"required,trip_status"`
	Reason string            `json:"reason" binding:"omitempty,max=500"`
}

type CancelTripInput struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

type RateTripInput struct {
	Score   int    `json:"score" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"omitempty,max=1000"`
}

type TripService struct {
	db       *gorm.DB
	notifier *broadcast.Notifier
	fare     config.FareConfig
	log      *logger.Logger
	now      clock
}

func NewTripService(db *gorm.DB, notifier *broadcast.Notifier, fare config.FareConfig, log *logger.Logger) *TripService {
	return &TripService{db: db, notifier: notifier, fare: fare, log: log, now: time.Now}
}

func findTrip(tx *gorm.DB, tripID uint) (*models.Trip, error) {
	var trip models.Trip
	err := tx.Preload("Client").Preload("Driver").First(&trip, tripID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("ошибка получения поездки: %w", err)
	}
	return &trip, nil
}

// Request создает поездку клиента. При use_package одна поездка списывается
// с самого старого действующего форфета в той же транзакции.
func (s *TripService) Request(ctx context.Context, clientID uint, in RequestTripInput) (*models.Trip, error) {
	if in.OriginLat == nil || in.OriginLng == nil || in.DestinationLat == nil || in.DestinationLng == nil {
		return nil, validation.NewError("origin_lat", "обязательное поле")
	}

	now := s.now()
	distance := HaversineKm(*in.OriginLat, *in.OriginLng, *in.DestinationLat, *in.DestinationLng)

	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentCash
	}
	if in.UsePackage {
		method = models.PaymentWallet
	}

	trip := &models.Trip{
		ClientID:           clientID,
		OriginLat:          *in.OriginLat,
		OriginLng:          *in.OriginLng,
		OriginAddress:      in.OriginAddress,
		DestinationLat:     *in.DestinationLat,
		DestinationLng:     *in.DestinationLng,
		DestinationAddress: in.DestinationAddress,
		DistanceKm:         roundMoney(distance),
		Fare:               quoteFare(s.fare.Base, s.fare.PerKm, distance),
		PaymentMethod:      method,
		Status:             models.TripRequested,
		RequestedAt:        now,
	}

	// одну активную поездку на клиента держит уникальный индекс
	// idx_trips_one_active_per_client, а не предварительный COUNT
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(trip).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrActiveTripExists
			}
			return fmt.Errorf("ошибка создания поездки: %w", err)
		}

		if in.UsePackage {
			purchaseID, err := consumePackageTrip(tx, clientID, now)
			if err != nil {
				return err
			}
			if err := tx.Model(trip).Update("package_purchase_id", purchaseID).Error; err != nil {
				return fmt.Errorf("ошибка привязки форфета: %w", err)
			}
			trip.PackagePurchaseID = &purchaseID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	middleware.TrackTripTransition(string(models.TripRequested))
	s.log.Info(logger.Entry{Action: "trip_requested", UserID: clientID, TripID: trip.ID,
		Fields: logger.Fields{"fare": trip.Fare, "distance_km": trip.DistanceKm}})

	s.notifier.Notify(ctx, broadcast.ChannelAvailableTrips, broadcast.EventTripRequested, trip.Response())
	return trip, nil
}

// consumePackageTrip списывает одну поездку условным UPDATE. Параллельный
// запрос не сможет списать последнюю поездку дважды.
func consumePackageTrip(tx *gorm.DB, clientID uint, now time.Time) (uint, error) {
	var candidates []models.PackagePurchase
	if err := tx.Where("client_id = ? AND state = ? AND remaining_trips > 0 AND expires_at > ?",
		clientID, models.PurchaseActive, now).
		Order("purchased_at ASC, id ASC").Find(&candidates).Error; err != nil {
		return 0, fmt.Errorf("ошибка поиска форфета: %w", err)
	}

	for _, p := range candidates {
		res := tx.Model(&models.PackagePurchase{}).
			Where("id = ? AND state = ? AND remaining_trips > 0", p.ID, models.PurchaseActive).
			Update("remaining_trips", gorm.Expr("remaining_trips - 1"))
		if res.Error != nil {
			return 0, fmt.Errorf("ошибка списания поездки с форфета: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}

		if err := tx.Model(&models.PackagePurchase{}).
			Where("id = ? AND remaining_trips = 0", p.ID).
			Update("state", models.PurchaseExhausted).Error; err != nil {
			return 0, fmt.Errorf("ошибка обновления форфета: %w", err)
		}
		return p.ID, nil
	}
	return 0, ErrNoUsablePackage
}

// refundPackageTrip возвращает поездку на форфет после отмены
func refundPackageTrip(tx *gorm.DB, purchaseID uint, now time.Time) error {
	if err := tx.Model(&models.PackagePurchase{}).Where("id = ?", purchaseID).
		Update("remaining_trips", gorm.Expr("remaining_trips + 1")).Error; err != nil {
		return fmt.Errorf("ошибка возврата поездки на форфет: %w", err)
	}
	if err := tx.Model(&models.PackagePurchase{}).
		Where("id = ? AND state = ? AND expires_at > ?", purchaseID, models.PurchaseExhausted, now).
		Update("state", models.PurchaseActive).Error; err != nil {
		return fmt.Errorf("ошибка обновления форфета: %w", err)
	}
	return nil
}

// Accept назначает мотористу на поездку. Назначение условное: выигрывает
// только первый, остальные получают ErrTripAlreadyTaken.
func (s *TripService) Accept(ctx context.Context, driverID, tripID uint) (*models.Trip, error) {
	db := s.db.WithContext(ctx)

	profile, err := findDriverProfile(db, driverID)
	if err != nil {
		return nil, err
	}
	if !profile.IsApproved() {
		return nil, ErrDriverNotApproved
	}
	if profile.Status != models.DriverAvailable {
		return nil, ErrDriverNotAvailable
	}

	now := s.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		busy, err := activeDriverTrip(tx, driverID)
		if err != nil {
			return err
		}
		if busy != nil {
			return ErrActiveTripExists
		}

		res := tx.Model(&models.Trip{}).
			Where("id = ? AND status = ? AND driver_id IS NULL", tripID, models.TripRequested).
			Updates(map[string]interface{}{
				"driver_id":   driverID,
				"status":      models.TripAccepted,
				"accepted_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("ошибка принятия поездки: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.Trip{}).Where("id = ?", tripID).Count(&count).Error; err != nil {
				return fmt.Errorf("ошибка получения поездки: %w", err)
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrTripAlreadyTaken
		}

		res = tx.Model(&models.DriverProfile{}).
			Where("user_id = ? AND status = ?", driverID, models.DriverAvailable).
			Update("status", models.DriverBusy)
		if res.Error != nil {
			return fmt.Errorf("ошибка обновления статуса мотористы: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDriverNotAvailable
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTripAlreadyTaken) {
			s.log.Info(logger.Entry{Action: "trip_accept_conflict", UserID: driverID, TripID: tripID})
		}
		return nil, err
	}

	trip, err := findTrip(db, tripID)
	if err != nil {
		return nil, err
	}

	middleware.TrackTripTransition(string(models.TripAccepted))
	s.log.Info(logger.Entry{Action: "trip_accepted", UserID: driverID, TripID: tripID})

	resp := trip.Response()
	s.notifier.Notify(ctx, broadcast.TripChannel(tripID), broadcast.EventTripAccepted, payload{
		"trip":   resp,
		"driver": profile.Response(),
	})
	s.notifier.Notify(ctx, broadcast.ChannelAvailableTrips, broadcast.EventTripTaken, payload{"trip_id": tripID})
	s.notifier.Notify(ctx, broadcast.ChannelDrivers, broadcast.EventDriverStatus, payload{
		"driver_id": driverID,
		"status":    models.DriverBusy,
	})
	return trip, nil
}

func statusTimestampColumn(status models.TripStatus) string {
	switch status {
	case models.TripInProgress:
		return "started_at"
	case models.TripCompleted:
		return "completed_at"
	case models.TripCancelled:
		return "cancelled_at"
	}
	return ""
}

// UpdateStatus двигает поездку вперед. Доступно только назначенному мотористе.
// Завершение начисляет мотористе выручку за вычетом комиссии.
func (s *TripService) UpdateStatus(ctx context.Context, driverID, tripID uint, in UpdateTripStatusInput) (*models.Trip, error) {
	db := s.db.WithContext(ctx)

	trip, err := findTrip(db, tripID)
	if err != nil {
		return nil, err
	}
	if trip.DriverID == nil || *trip.DriverID != driverID {
		return nil, ErrForbidden
	}

	from, to := trip.Status, in.Status
	if to == models.TripAccepted || to == models.TripRequested || !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	now := s.now()
	var earning float64
	var driverStatus models.DriverStatus

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":                   to,
			statusTimestampColumn(to): now,
		}
		if to == models.TripCancelled {
			updates["cancelled_by"] = driverID
			updates["cancel_reason"] = in.Reason
		}

		res := tx.Model(&models.Trip{}).
			Where("id = ? AND driver_id = ? AND status = ?", tripID, driverID, from).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("ошибка обновления поездки: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: состояние поездки изменилось", ErrInvalidTransition)
		}

		if to == models.TripCompleted {
			earning = driverEarning(trip.Fare, s.fare.Commission)
			if err := creditEarning(tx, driverID, tripID, earning); err != nil {
				return err
			}
		}
		if to == models.TripCancelled && trip.PackagePurchaseID != nil {
			if err := refundPackageTrip(tx, *trip.PackagePurchaseID, now); err != nil {
				return err
			}
		}

		if to.IsTerminal() {
			released, err := releaseDriver(tx, driverID)
			if err != nil {
				return err
			}
			driverStatus = released
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	trip, err = findTrip(db, tripID)
	if err != nil {
		return nil, err
	}

	middleware.TrackTripTransition(string(to))
	s.log.Info(logger.Entry{Action: "trip_status_changed", UserID: driverID, TripID: tripID,
		Fields: logger.Fields{"from": from, "to": to, "earning": earning}})

	s.notifier.Notify(ctx, broadcast.TripChannel(tripID), broadcast.EventTripStatusChanged, payload{
		"trip":        trip.Response(),
		"from_status": from,
	})
	if to.IsTerminal() {
		s.notifier.Notify(ctx, broadcast.ChannelDrivers, broadcast.EventDriverStatus, payload{
			"driver_id": driverID,
			"status":    driverStatus,
		})
		s.notifier.Revoke(ctx, broadcast.DriverChannel(driverID), trip.ClientID)
	}
	return trip, nil
}

// releaseDriver снимает мотористу с поездки. В available возвращается только
// одобренный; отклоненный во время поездки остается offline.
func releaseDriver(tx *gorm.DB, driverID uint) (models.DriverStatus, error) {
	res := tx.Model(&models.DriverProfile{}).
		Where("user_id = ? AND status = ? AND validation_status = ?", driverID, models.DriverBusy, models.ValidationApproved).
		Update("status", models.DriverAvailable)
	if res.Error != nil {
		return "", fmt.Errorf("ошибка обновления статуса мотористы: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return models.DriverAvailable, nil
	}

	if err := tx.Model(&models.DriverProfile{}).
		Where("user_id = ? AND status = ?", driverID, models.DriverBusy).
		Update("status", models.DriverOffline).Error; err != nil {
		return "", fmt.Errorf("ошибка обновления статуса мотористы: %w", err)
	}

	p, err := findDriverProfile(tx, driverID)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}

func creditEarning(tx *gorm.DB, driverID, tripID uint, amount float64) error {
	if err := tx.Model(&models.DriverProfile{}).Where("user_id = ?", driverID).
		Update("wallet_balance", gorm.Expr("wallet_balance + ?", amount)).Error; err != nil {
		return fmt.Errorf("ошибка начисления выручки: %w", err)
	}

	p, err := findDriverProfile(tx, driverID)
	if err != nil {
		return err
	}
	balance := roundMoney(p.WalletBalance)

	record := &models.Transaction{
		UserID:       driverID,
		Amount:       amount,
		Type:         models.TransactionEarning,
		Status:       models.TransactionCompleted,
		Description:  fmt.Sprintf("Ganancia del viaje #%d", tripID),
		BalanceAfter: &balance,
		TripID:       &tripID,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return nil
}

// Cancel - отмена поездки клиентом до начала поездки
func (s *TripService) Cancel(ctx context.Context, clientID, tripID uint, in CancelTripInput) (*models.Trip, error) {
	db := s.db.WithContext(ctx)

	trip, err := findTrip(db, tripID)
	if err != nil {
		return nil, err
	}
	if trip.ClientID != clientID {
		return nil, ErrForbidden
	}

	from := trip.Status
	if from != models.TripRequested && from != models.TripAccepted {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, models.TripCancelled)
	}

	now := s.now()
	var driverStatus models.DriverStatus
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trip{}).
			Where("id = ? AND client_id = ? AND status = ?", tripID, clientID, from).
			Updates(map[string]interface{}{
				"status":        models.TripCancelled,
				"cancelled_at":  now,
				"cancelled_by":  clientID,
				"cancel_reason": in.Reason,
			})
		if res.Error != nil {
			return fmt.Errorf("ошибка отмены поездки: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: состояние поездки изменилось", ErrInvalidTransition)
		}

		if trip.PackagePurchaseID != nil {
			if err := refundPackageTrip(tx, *trip.PackagePurchaseID, now); err != nil {
				return err
			}
		}
		if trip.DriverID != nil {
			released, err := releaseDriver(tx, *trip.DriverID)
			if err != nil {
				return err
			}
			driverStatus = released
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	trip, err = findTrip(db, tripID)
	if err != nil {
		return nil, err
	}

	middleware.TrackTripTransition(string(models.TripCancelled))
	s.log.Info(logger.Entry{Action: "trip_cancelled", UserID: clientID, TripID: tripID, Fields: logger.Fields{"from": from}})

	s.notifier.Notify(ctx, broadcast.TripChannel(tripID), broadcast.EventTripStatusChanged, payload{
		"trip":        trip.Response(),
		"from_status": from,
	})
	if from == models.TripRequested {
		s.notifier.Notify(ctx, broadcast.ChannelAvailableTrips, broadcast.EventTripTaken, payload{"trip_id": tripID})
	}
	if trip.DriverID != nil {
		s.notifier.Notify(ctx, broadcast.ChannelDrivers, broadcast.EventDriverStatus, payload{
			"driver_id": *trip.DriverID,
			"status":    driverStatus,
		})
		s.notifier.Revoke(ctx, broadcast.DriverChannel(*trip.DriverID), clientID)
	}
	return trip, nil
}

// Rate - одна оценка на завершенную поездку
func (s *TripService) Rate(ctx context.Context, clientID, tripID uint, in RateTripInput) (*models.Rating, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, validation.NewError("score", "значение от 1 до 5")
	}

	db := s.db.WithContext(ctx)
	trip, err := findTrip(db, tripID)
	if err != nil {
		return nil, err
	}
	if trip.ClientID != clientID {
		return nil, ErrForbidden
	}
	if trip.Status != models.TripCompleted || trip.DriverID == nil {
		return nil, ErrTripNotCompleted
	}

	var count int64
	if err := db.Model(&models.Rating{}).Where("trip_id = ?", tripID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("ошибка проверки оценки: %w", err)
	}
	if count > 0 {
		return nil, ErrAlreadyRated
	}

	rating := &models.Rating{
		TripID:   tripID,
		DriverID: *trip.DriverID,
		ClientID: clientID,
		Score:    in.Score,
		Comment:  in.Comment,
	}
	if err := db.Create(rating).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyRated
		}
		return nil, fmt.Errorf("ошибка сохранения оценки: %w", err)
	}

	s.log.Info(logger.Entry{Action: "trip_rated", UserID: clientID, TripID: tripID, Fields: logger.Fields{"score": in.Score}})
	return rating, nil
}

// Get - поездку видят участники и администратор. Ожидающую поездку
// видят и мотористы.
func (s *TripService) Get(ctx context.Context, userID uint, role models.Role, tripID uint) (*models.Trip, error) {
	trip, err := findTrip(s.db.WithContext(ctx), tripID)
	if err != nil {
		return nil, err
	}

	switch {
	case role == models.RoleAdmin, trip.IsParticipant(userID):
		return trip, nil
	case role == models.RoleMotorista && trip.Status == models.TripRequested:
		return trip, nil
	}
	return nil, ErrForbidden
}

// ListMine - поездки клиента или мотористы, новые первыми
func (s *TripService) ListMine(ctx context.Context, userID uint, role models.Role, status models.TripStatus) ([]models.Trip, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Driver")
	if role == models.RoleMotorista {
		q = q.Where("driver_id = ?", userID)
	} else {
		q = q.Where("client_id = ?", userID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var trips []models.Trip
	if err := q.Order("requested_at DESC, id DESC").Find(&trips).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения поездок: %w", err)
	}
	return trips, nil
}

// ListAvailable - ожидающие поездки для одобренного мотористы
func (s *TripService) ListAvailable(ctx context.Context, driverID uint) ([]models.Trip, error) {
	db := s.db.WithContext(ctx)

	profile, err := findDriverProfile(db, driverID)
	if err != nil {
		return nil, err
	}
	if !profile.IsApproved() {
		return nil, ErrDriverNotApproved
	}

	var trips []models.Trip
	if err := db.Preload("Client").
		Where("status = ? AND driver_id IS NULL", models.TripRequested).
		Order("requested_at ASC, id ASC").Find(&trips).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения поездок: %w", err)
	}
	return trips, nil
}
