package models

import (
	"time"
)

type TransactionType string

const (
	TransactionWithdrawal TransactionType = "withdrawal"
	TransactionPurchase   TransactionType = "purchase"
	TransactionEarning    TransactionType = "earning"
)

type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction - неизменяемая запись о финансовом событии
type Transaction struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	UserID            uint              `json:"user_id" gorm:"not null;index"`
	Amount            float64           `json:"amount" gorm:"type:numeric(12,2);not null"`
	Type              TransactionType   `json:"type" gorm:"type:varchar(20);not null;index"`
	Status            TransactionStatus `json:"status" gorm:"type:varchar(20);default:'completed'"`
	PaymentMethod     PaymentMethod     `json:"payment_method" gorm:"type:varchar(20)"`
	Description       string            `json:"description" gorm:"type:text"`
	BalanceAfter      *float64          `json:"balance_after,omitempty" gorm:"type:numeric(12,2)"`
	TripID            *uint             `json:"trip_id,omitempty" gorm:"index"`
	PackagePurchaseID *uint             `json:"package_purchase_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
