package services

import (
	"context"
	"errors"
	"fmt"

	"mototaxi-backend/internal/broadcast"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/validation"

	"gorm.io/gorm"
)

type ValidateDriverInput struct {
	Status models.ValidationStatus `json:"status" binding:"required,oneof=approved rejected"`
	Reason string                  `json:"reason" binding:"omitempty,max=1000"`
}

// Stats - сводка для панели администратора
type Stats struct {
	UsersByRole         map[models.Role]int64             `json:"users_by_role"`
	TripsByStatus       map[models.TripStatus]int64       `json:"trips_by_status"`
	DriversByStatus     map[models.DriverStatus]int64     `json:"drivers_by_status"`
	DriversByValidation map[models.ValidationStatus]int64 `json:"drivers_by_validation"`
	TotalEarnings       float64                           `json:"total_earnings"`
	TotalWithdrawals    float64                           `json:"total_withdrawals"`
	TotalPurchases      float64                           `json:"total_purchases"`
}

type AdminService struct {
	db       *gorm.DB
	users    *UserService
	notifier *broadcast.Notifier
	log      *logger.Logger
}

func NewAdminService(db *gorm.DB, users *UserService, notifier *broadcast.Notifier, log *logger.Logger) *AdminService {
	return &AdminService{db: db, users: users, notifier: notifier, log: log}
}

func (s *AdminService) ListDrivers(ctx context.Context, validationStatus models.ValidationStatus) ([]models.DriverProfile, error) {
	q := s.db.WithContext(ctx).Preload("User").
		Joins("JOIN users ON users.id = driver_profiles.user_id AND users.deleted_at IS NULL")
	if validationStatus != "" {
		q = q.Where("driver_profiles.validation_status = ?", validationStatus)
	}

	var drivers []models.DriverProfile
	if err := q.Order("driver_profiles.created_at ASC, driver_profiles.id ASC").Find(&drivers).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения мотористов: %w", err)
	}
	return drivers, nil
}

// ValidateDriver одобряет или отклоняет мотористу. Отклоненный уходит в offline.
func (s *AdminService) ValidateDriver(ctx context.Context, driverID uint, in ValidateDriverInput) (*models.DriverProfile, error) {
	if in.Status != models.ValidationApproved && in.Status != models.ValidationRejected {
		return nil, validation.NewError("status", "допустимые значения: approved rejected")
	}

	db := s.db.WithContext(ctx)
	p, err := findDriverProfile(db, driverID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"validation_status": in.Status,
		"rejection_reason":  "",
	}
	if in.Status == models.ValidationRejected {
		updates["rejection_reason"] = in.Reason
		updates["status"] = models.DriverOffline
	}
	if err := db.Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления проверки мотористы: %w", err)
	}

	s.log.Info(logger.Entry{Action: "driver_validated", UserID: driverID, Fields: logger.Fields{"status": in.Status}})

	if in.Status == models.ValidationRejected {
		// уже открытые подписки на ленту заказов закрываются
		s.notifier.Revoke(ctx, broadcast.ChannelAvailableTrips, driverID)
		s.notifier.Notify(ctx, broadcast.ChannelDrivers, broadcast.EventDriverStatus, payload{
			"driver_id": driverID,
			"status":    models.DriverOffline,
		})
	}
	return findDriverProfile(db.Preload("User"), driverID)
}

func (s *AdminService) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	q := s.db.WithContext(ctx).Preload("DriverProfile")
	if role != "" {
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения пользователей: %w", err)
	}
	return users, nil
}

// DeleteUser удаляет аккаунт так же, как пользователь удаляет его сам.
// Удалить самого себя через панель нельзя.
func (s *AdminService) DeleteUser(ctx context.Context, adminID, userID uint) error {
	if adminID == userID {
		return ErrForbidden
	}
	return s.users.DeleteAccount(ctx, userID)
}

func (s *AdminService) ListTrips(ctx context.Context, status models.TripStatus) ([]models.Trip, error) {
	q := s.db.WithContext(ctx).Preload("Client").Preload("Driver")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var trips []models.Trip
	if err := q.Order("requested_at DESC, id DESC").Find(&trips).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения поездок: %w", err)
	}
	return trips, nil
}

func (s *AdminService) ListTransactions(ctx context.Context, txType models.TransactionType, userID uint) ([]models.Transaction, error) {
	q := s.db.WithContext(ctx)
	if txType != "" {
		q = q.Where("type = ?", txType)
	}
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}

	var txs []models.Transaction
	if err := q.Order("created_at DESC, id DESC").Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	return txs, nil
}

type groupCount struct {
	GroupKey string
	Count    int64
}

func countBy(tx *gorm.DB, model interface{}, column string) ([]groupCount, error) {
	var rows []groupCount
	err := tx.Model(model).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	return rows, err
}

func sumAmount(tx *gorm.DB, txType models.TransactionType) (float64, error) {
	var total float64
	err := tx.Model(&models.Transaction{}).
		Where("type = ? AND status = ?", txType, models.TransactionCompleted).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return roundMoney(total), err
}

func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	db := s.db.WithContext(ctx)
	stats := &Stats{
		UsersByRole:         map[models.Role]int64{},
		TripsByStatus:       map[models.TripStatus]int64{},
		DriversByStatus:     map[models.DriverStatus]int64{},
		DriversByValidation: map[models.ValidationStatus]int64{},
	}

	rows, err := countBy(db, &models.User{}, "role")
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчета пользователей: %w", err)
	}
	for _, r := range rows {
		stats.UsersByRole[models.Role(r.GroupKey)] = r.Count
	}

	if rows, err = countBy(db, &models.Trip{}, "status"); err != nil {
		return nil, fmt.Errorf("ошибка подсчета поездок: %w", err)
	}
	for _, r := range rows {
		stats.TripsByStatus[models.TripStatus(r.GroupKey)] = r.Count
	}

	if rows, err = countBy(db, &models.DriverProfile{}, "status"); err != nil {
		return nil, fmt.Errorf("ошибка подсчета мотористов: %w", err)
	}
	for _, r := range rows {
		stats.DriversByStatus[models.DriverStatus(r.GroupKey)] = r.Count
	}

	if rows, err = countBy(db, &models.DriverProfile{}, "validation_status"); err != nil {
		return nil, fmt.Errorf("ошибка подсчета мотористов: %w", err)
	}
	for _, r := range rows {
		stats.DriversByValidation[models.ValidationStatus(r.GroupKey)] = r.Count
	}

	totals := []struct {
		typ models.TransactionType
		dst *float64
	}{
		{models.TransactionEarning, &stats.TotalEarnings},
		{models.TransactionWithdrawal, &stats.TotalWithdrawals},
		{models.TransactionPurchase, &stats.TotalPurchases},
	}
	for _, t := range totals {
		v, err := sumAmount(db, t.typ)
		if err != nil {
			return nil, fmt.Errorf("ошибка подсчета транзакций: %w", err)
		}
		*t.dst = v
	}
	return stats, nil
}

// FindUser - служебный поиск, в том числе для CLI
func (s *AdminService) FindUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	return &user, nil
}
