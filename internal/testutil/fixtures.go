package testutil

import (
	"fmt"
	"testing"
	"time"

	"mototaxi-backend/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Password - пароль всех пользователей из фикстур
const Password = "secret-password"

var passwordHash string

func hashedPassword(t testing.TB) string {
	if passwordHash == "" {
		h, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
		if err != nil {
			t.Fatalf("bcrypt: %v", err)
		}
		passwordHash = string(h)
	}
	return passwordHash
}

func CreateUser(t testing.TB, conn *gorm.DB, role models.Role) *models.User {
	t.Helper()

	var count int64
	conn.Unscoped().Model(&models.User{}).Count(&count)

	u := &models.User{
		Name:     fmt.Sprintf("User %d", count+1),
		Email:    fmt.Sprintf("user%d@example.com", count+1),
		Password: hashedPassword(t),
		Phone:    fmt.Sprintf("+5730000000%02d", count+1),
		Document: fmt.Sprintf("DOC%06d", count+1),
		Role:     role,
	}
	if err := conn.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateDriver создает мотористу с профилем в заданных статусах
func CreateDriver(t testing.TB, conn *gorm.DB, validation models.ValidationStatus, status models.DriverStatus, balance float64) (*models.User, *models.DriverProfile) {
	t.Helper()

	u := CreateUser(t, conn, models.RoleMotorista)
	p := &models.DriverProfile{
		UserID:           u.ID,
		VehicleBrand:     "Honda",
		VehicleModel:     "CB190",
		VehiclePlate:     fmt.Sprintf("ABC%03d", u.ID),
		VehicleColor:     "red",
		VehicleYear:      2021,
		LicenseNumber:    fmt.Sprintf("LIC%05d", u.ID),
		ValidationStatus: validation,
		Status:           status,
		WalletBalance:    balance,
	}
	if err := conn.Create(p).Error; err != nil {
		t.Fatalf("create driver profile: %v", err)
	}
	u.DriverProfile = p
	return u, p
}

func CreatePackage(t testing.TB, conn *gorm.DB, trips, days int, state models.PackageState) *models.Package {
	t.Helper()

	p := &models.Package{
		Name:          fmt.Sprintf("Pack %d", trips),
		Description:   "test package",
		Price:         float64(trips) * 2.5,
		IncludedTrips: trips,
		ValidityDays:  days,
		State:         state,
	}
	if err := conn.Create(p).Error; err != nil {
		t.Fatalf("create package: %v", err)
	}
	return p
}

func CreatePurchase(t testing.TB, conn *gorm.DB, clientID, packageID uint, remaining int, expiresAt time.Time) *models.PackagePurchase {
	t.Helper()

	p := &models.PackagePurchase{
		ClientID:       clientID,
		PackageID:      packageID,
		PurchasedAt:    time.Now(),
		ExpiresAt:      expiresAt,
		RemainingTrips: remaining,
		State:          models.PurchaseActive,
	}
	if err := conn.Create(p).Error; err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	return p
}
