package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mototaxi-backend/internal/cache"
	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"

	"gorm.io/gorm"
)

type PackageInput struct {
	Name          string              `json:"name" binding:"required,max=120"`
	Description   string              `json:"description" binding:"omitempty,max=2000"`
	Price         float64             `json:"price" binding:"required,gt=0"`
	IncludedTrips int                 `json:"included_trips" binding:"required,min=1"`
	ValidityDays  int                 `json:"validity_days" binding:"required,min=1"`
	State         models.PackageState `json:"state" binding:"omitempty,oneof=active inactive"`
}

type PurchaseInput struct {
	PaymentMethod models.PaymentMethod `json:"payment_method" binding:"required,payment_method"`
}

type PackageService struct {
	db    *gorm.DB
	cache *cache.Service
	log   *logger.Logger
	now   clock
}

func NewPackageService(db *gorm.DB, cache *cache.Service, log *logger.Logger) *PackageService {
	return &PackageService{db: db, cache: cache, log: log, now: time.Now}
}

func (s *PackageService) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.ActivePackagesKey()); err != nil {
		s.log.Warn(logger.Entry{Action: "package_cache_invalidate_failed", Err: err})
	}
}

func (s *PackageService) find(ctx context.Context, id uint) (*models.Package, error) {
	var p models.Package
	err := s.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("ошибка получения форфета: %w", err)
	}
	return &p, nil
}

func (s *PackageService) Create(ctx context.Context, in PackageInput) (*models.Package, error) {
	state := in.State
	if state == "" {
		state = models.PackageActive
	}

	p := &models.Package{
		Name:          in.Name,
		Description:   in.Description,
		Price:         roundMoney(in.Price),
		IncludedTrips: in.IncludedTrips,
		ValidityDays:  in.ValidityDays,
		State:         state,
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("ошибка создания форфета: %w", err)
	}

	s.invalidate(ctx)
	s.log.Info(logger.Entry{Action: "package_created", Fields: logger.Fields{"package_id": p.ID}})
	return p, nil
}

func (s *PackageService) Update(ctx context.Context, id uint, in PackageInput) (*models.Package, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"name":           in.Name,
		"description":    in.Description,
		"price":          roundMoney(in.Price),
		"included_trips": in.IncludedTrips,
		"validity_days":  in.ValidityDays,
	}
	if in.State != "" {
		updates["state"] = in.State
	}
	if err := s.db.WithContext(ctx).Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка обновления форфета: %w", err)
	}

	s.invalidate(ctx)
	return s.find(ctx, id)
}

// Deactivate снимает форфет с продажи. Купленные форфеты продолжают действовать.
func (s *PackageService) Deactivate(ctx context.Context, id uint) (*models.Package, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(p).Update("state", models.PackageInactive).Error; err != nil {
		return nil, fmt.Errorf("ошибка деактивации форфета: %w", err)
	}
	p.State = models.PackageInactive

	s.invalidate(ctx)
	return p, nil
}

func (s *PackageService) ListAll(ctx context.Context) ([]models.Package, error) {
	var packages []models.Package
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&packages).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения форфетов: %w", err)
	}
	return packages, nil
}

// ListActive - каталог для клиентов, кэшируется в Redis
func (s *PackageService) ListActive(ctx context.Context) ([]models.Package, error) {
	var packages []models.Package

	found, err := s.cache.Get(ctx, cache.ActivePackagesKey(), &packages)
	if err != nil {
		s.log.Warn(logger.Entry{Action: "package_cache_read_failed", Err: err})
	} else if found {
		return packages, nil
	}

	if err := s.db.WithContext(ctx).Where("state = ?", models.PackageActive).
		Order("price ASC, id ASC").Find(&packages).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения форфетов: %w", err)
	}

	if err := s.cache.Set(ctx, cache.ActivePackagesKey(), packages); err != nil {
		s.log.Warn(logger.Entry{Action: "package_cache_write_failed", Err: err})
	}
	return packages, nil
}

// Purchase оформляет покупку: запись форфета клиента и транзакция purchase
// создаются вместе.
func (s *PackageService) Purchase(ctx context.Context, clientID, packageID uint, in PurchaseInput) (*models.PackagePurchase, error) {
	pkg, err := s.find(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg.State != models.PackageActive {
		return nil, ErrPackageInactive
	}

	now := s.now()
	purchase := &models.PackagePurchase{
		ClientID:       clientID,
		PackageID:      pkg.ID,
		PurchasedAt:    now,
		ExpiresAt:      now.AddDate(0, 0, pkg.ValidityDays),
		RemainingTrips: pkg.IncludedTrips,
		PricePaid:      pkg.Price,
		PaymentMethod:  in.PaymentMethod,
		State:          models.PurchaseActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(purchase).Error; err != nil {
			return fmt.Errorf("ошибка оформления покупки: %w", err)
		}

		record := &models.Transaction{
			UserID:            clientID,
			Amount:            pkg.Price,
			Type:              models.TransactionPurchase,
			Status:            models.TransactionCompleted,
			PaymentMethod:     in.PaymentMethod,
			Description:       fmt.Sprintf("Compra de forfait %s", pkg.Name),
			PackagePurchaseID: &purchase.ID,
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("ошибка записи транзакции: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	purchase.Package = pkg
	s.log.Info(logger.Entry{Action: "package_purchased", UserID: clientID,
		Fields: logger.Fields{"package_id": pkg.ID, "purchase_id": purchase.ID}})
	return purchase, nil
}

func (s *PackageService) ListMine(ctx context.Context, clientID uint) ([]models.PackagePurchase, error) {
	var purchases []models.PackagePurchase
	if err := s.db.WithContext(ctx).Preload("Package").
		Where("client_id = ?", clientID).
		Order("purchased_at DESC, id DESC").Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения форфетов клиента: %w", err)
	}
	return purchases, nil
}

// ExpirePurchases помечает просроченные форфеты как expired
func (s *PackageService) ExpirePurchases(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.PackagePurchase{}).
		Where("state IN ? AND expires_at <= ?", []models.PurchaseState{models.PurchaseActive, models.PurchaseExhausted}, now).
		Update("state", models.PurchaseExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("ошибка обработки просроченных форфетов: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info(logger.Entry{Action: "package_purchases_expired", Fields: logger.Fields{"count": res.RowsAffected}})
	}
	return res.RowsAffected, nil
}

// RunSweeper периодически вызывает ExpirePurchases до отмены ctx
func (s *PackageService) RunSweeper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpirePurchases(ctx, s.now()); err != nil {
				s.log.Error(logger.Entry{Action: "package_sweeper_failed", Err: err})
			}
		}
	}
}
