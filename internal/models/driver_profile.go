package models

import (
	"time"
)

type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"  // На модерации
	ValidationApproved ValidationStatus = "approved" // Принят
	ValidationRejected ValidationStatus = "rejected" // Отказ
)

func (s ValidationStatus) Valid() bool {
	switch s {
	case ValidationPending, ValidationApproved, ValidationRejected:
		return true
	}
	return false
}

type DriverStatus string

const (
	DriverAvailable DriverStatus = "available"
	DriverBusy      DriverStatus = "busy"
	DriverOffline   DriverStatus = "offline"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case DriverAvailable, DriverBusy, DriverOffline:
		return true
	}
	return false
}

// DriverProfile - профиль мотористы. Создается вместе с регистрацией водителя.
type DriverProfile struct {
	ID                uint             `json:"id" gorm:"primaryKey"`
	UserID            uint             `json:"user_id" gorm:"uniqueIndex;not null"`
	VehicleBrand      string           `json:"vehicle_brand" gorm:"type:varchar(100);not null"`
	VehicleModel      string           `json:"vehicle_model" gorm:"type:varchar(100);not null"`
	VehiclePlate      string           `json:"vehicle_plate" gorm:"type:varchar(20);uniqueIndex;not null"`
	VehicleColor      string           `json:"vehicle_color" gorm:"type:varchar(50)"`
	VehicleYear       int              `json:"vehicle_year"`
	LicenseNumber     string           `json:"license_number" gorm:"type:varchar(50);not null"`
	LicensePhotoURL   string           `json:"license_photo_url" gorm:"type:text"`
	ValidationStatus  ValidationStatus `json:"validation_status" gorm:"type:varchar(20);default:'pending';index"`
	RejectionReason   string           `json:"rejection_reason,omitempty" gorm:"type:text"`
	Status            DriverStatus     `json:"status" gorm:"type:varchar(20);default:'offline';index"`
	Latitude          *float64         `json:"latitude,omitempty"`
	Longitude         *float64         `json:"longitude,omitempty"`
	LocationUpdatedAt *time.Time       `json:"location_updated_at,omitempty"`
	WalletBalance     float64          `json:"wallet_balance" gorm:"type:numeric(12,2);not null;default:0"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	User              *User            `json:"-" gorm:"foreignKey:UserID"`
}

type DriverProfileResponse struct {
	ID                uint             `json:"id"`
	UserID            uint             `json:"user_id"`
	Name              string           `json:"name,omitempty"`
	Phone             string           `json:"phone,omitempty"`
	VehicleBrand      string           `json:"vehicle_brand"`
	VehicleModel      string           `json:"vehicle_model"`
	VehiclePlate      string           `json:"vehicle_plate"`
	VehicleColor      string           `json:"vehicle_color"`
	VehicleYear       int              `json:"vehicle_year"`
	LicenseNumber     string           `json:"license_number"`
	LicensePhotoURL   string           `json:"license_photo_url,omitempty"`
	ValidationStatus  ValidationStatus `json:"validation_status"`
	RejectionReason   string           `json:"rejection_reason,omitempty"`
	Status            DriverStatus     `json:"status"`
	Latitude          *float64         `json:"latitude,omitempty"`
	Longitude         *float64         `json:"longitude,omitempty"`
	LocationUpdatedAt *time.Time       `json:"location_updated_at,omitempty"`
	WalletBalance     float64          `json:"wallet_balance"`
	CreatedAt         time.Time        `json:"created_at"`
}

func (p *DriverProfile) Response() DriverProfileResponse {
	resp := DriverProfileResponse{
		ID:                p.ID,
		UserID:            p.UserID,
		VehicleBrand:      p.VehicleBrand,
		VehicleModel:      p.VehicleModel,
		VehiclePlate:      p.VehiclePlate,
		VehicleColor:      p.VehicleColor,
		VehicleYear:       p.VehicleYear,
		LicenseNumber:     p.LicenseNumber,
		LicensePhotoURL:   p.LicensePhotoURL,
		ValidationStatus:  p.ValidationStatus,
		RejectionReason:   p.RejectionReason,
		Status:            p.Status,
		Latitude:          p.Latitude,
		Longitude:         p.Longitude,
		LocationUpdatedAt: p.LocationUpdatedAt,
		WalletBalance:     p.WalletBalance,
		CreatedAt:         p.CreatedAt,
	}
	if p.User != nil {
		resp.Name = p.User.Name
		resp.Phone = p.User.Phone
	}
	return resp
}

func (p *DriverProfile) IsApproved() bool {
	return p.ValidationStatus == ValidationApproved
}
