package models

import (
	"time"
)

type PackageState string

const (
	PackageActive   PackageState = "active"
	PackageInactive PackageState = "inactive"
)

// Package - форфет, предоплаченный пакет поездок
type Package struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	Name          string       `json:"name" gorm:"type:varchar(120);not null"`
	Description   string       `json:"description" gorm:"type:text"`
	Price         float64      `json:"price" gorm:"type:numeric(12,2);not null"`
	IncludedTrips int          `json:"included_trips" gorm:"not null"`
	ValidityDays  int          `json:"validity_days" gorm:"not null"`
	State         PackageState `json:"state" gorm:"type:varchar(20);default:'active';index"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type PurchaseState string

const (
	PurchaseActive    PurchaseState = "active"
	PurchaseExhausted PurchaseState = "exhausted"
	PurchaseExpired   PurchaseState = "expired"
)

// PackagePurchase - купленный клиентом форфет (cliente_forfait)
type PackagePurchase struct {
	ID             uint          `json:"id" gorm:"primaryKey"`
	ClientID       uint          `json:"client_id" gorm:"not null;index"`
	PackageID      uint          `json:"package_id" gorm:"not null;index"`
	PurchasedAt    time.Time     `json:"purchased_at" gorm:"not null"`
	ExpiresAt      time.Time     `json:"expires_at" gorm:"not null;index"`
	RemainingTrips int           `json:"remaining_trips" gorm:"not null"`
	PricePaid      float64       `json:"price_paid" gorm:"type:numeric(12,2)"`
	PaymentMethod  PaymentMethod `json:"payment_method" gorm:"type:varchar(20)"`
	State          PurchaseState `json:"state" gorm:"type:varchar(20);default:'active';index"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	Package        *Package      `json:"package,omitempty" gorm:"foreignKey:PackageID"`
}

// Usable - можно ли списать поездку в момент now
func (p *PackagePurchase) Usable(now time.Time) bool {
	return p.State == PurchaseActive && p.RemainingTrips > 0 && now.Before(p.ExpiresAt)
}
