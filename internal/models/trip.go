package models

import (
	"time"
)

type TripStatus string

const (
	TripRequested  TripStatus = "requested"   // Ожидает мотористу
	TripAccepted   TripStatus = "accepted"    // Моториста назначен
	TripInProgress TripStatus = "in_progress" // Поездка началась
	TripCompleted  TripStatus = "completed"   // Завершена
	TripCancelled  TripStatus = "cancelled"   // Отменена
)

// Разрешенные переходы. Назад двигаться нельзя, завершенные состояния конечны.
var tripTransitions = map[TripStatus][]TripStatus{
	TripRequested:  {TripAccepted, TripCancelled},
	TripAccepted:   {TripInProgress, TripCancelled},
	TripInProgress: {TripCompleted, TripCancelled},
}

func (s TripStatus) Valid() bool {
	switch s {
	case TripRequested, TripAccepted, TripInProgress, TripCompleted, TripCancelled:
		return true
	}
	return false
}

func (s TripStatus) IsTerminal() bool {
	return s == TripCompleted || s == TripCancelled
}

func (s TripStatus) CanTransitionTo(next TripStatus) bool {
	for _, allowed := range tripTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ActiveTripStatuses - состояния, в которых поездка еще не закончена
var ActiveTripStatuses = []TripStatus{TripRequested, TripAccepted, TripInProgress}

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentWallet   PaymentMethod = "wallet"
)

// Trip - поездка (viaje). DriverID заполняется один раз при принятии.
type Trip struct {
	ID                 uint          `json:"id" gorm:"primaryKey"`
	ClientID           uint          `json:"client_id" gorm:"not null;index"`
	DriverID           *uint         `json:"driver_id,omitempty" gorm:"index"`
	OriginLat          float64       `json:"origin_lat" gorm:"not null"`
	OriginLng          float64       `json:"origin_lng" gorm:"not null"`
	OriginAddress      string        `json:"origin_address" gorm:"type:varchar(255)"`
	DestinationLat     float64       `json:"destination_lat" gorm:"not null"`
	DestinationLng     float64       `json:"destination_lng" gorm:"not null"`
	DestinationAddress string        `json:"destination_address" gorm:"type:varchar(255)"`
	DistanceKm         float64       `json:"distance_km" gorm:"type:numeric(8,2)"`
	Fare               float64       `json:"fare" gorm:"type:numeric(12,2);not null"`
	PaymentMethod      PaymentMethod `json:"payment_method" gorm:"type:varchar(20);default:'cash'"`
	PackagePurchaseID  *uint         `json:"package_purchase_id,omitempty"`
	Status             TripStatus    `json:"status" gorm:"type:varchar(20);default:'requested';index"`
	CancelReason       string        `json:"cancel_reason,omitempty" gorm:"type:text"`
	CancelledBy        *uint         `json:"cancelled_by,omitempty"`
	RequestedAt        time.Time     `json:"requested_at"`
	AcceptedAt         *time.Time    `json:"accepted_at,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	Client             *User         `json:"-" gorm:"foreignKey:ClientID"`
	Driver             *User         `json:"-" gorm:"foreignKey:DriverID"`
}

type TripResponse struct {
	ID                 uint          `json:"id"`
	ClientID           uint          `json:"client_id"`
	ClientName         string        `json:"client_name,omitempty"`
	DriverID           *uint         `json:"driver_id,omitempty"`
	DriverName         string        `json:"driver_name,omitempty"`
	OriginLat          float64       `json:"origin_lat"`
	OriginLng          float64       `json:"origin_lng"`
	OriginAddress      string        `json:"origin_address,omitempty"`
	DestinationLat     float64       `json:"destination_lat"`
	DestinationLng     float64       `json:"destination_lng"`
	DestinationAddress string        `json:"destination_address,omitempty"`
	DistanceKm         float64       `json:"distance_km"`
	Fare               float64       `json:"fare"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	PackagePurchaseID  *uint         `json:"package_purchase_id,omitempty"`
	Status             TripStatus    `json:"status"`
	CancelReason       string        `json:"cancel_reason,omitempty"`
	RequestedAt        time.Time     `json:"requested_at"`
	AcceptedAt         *time.Time    `json:"accepted_at,omitempty"`
	StartedAt          *time.Time    `json:"started_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
}

func (t *Trip) Response() TripResponse {
	resp := TripResponse{
		ID:                 t.ID,
		ClientID:           t.ClientID,
		DriverID:           t.DriverID,
		OriginLat:          t.OriginLat,
		OriginLng:          t.OriginLng,
		OriginAddress:      t.OriginAddress,
		DestinationLat:     t.DestinationLat,
		DestinationLng:     t.DestinationLng,
		DestinationAddress: t.DestinationAddress,
		DistanceKm:         t.DistanceKm,
		Fare:               t.Fare,
		PaymentMethod:      t.PaymentMethod,
		PackagePurchaseID:  t.PackagePurchaseID,
		Status:             t.Status,
		CancelReason:       t.CancelReason,
		RequestedAt:        t.RequestedAt,
		AcceptedAt:         t.AcceptedAt,
		StartedAt:          t.StartedAt,
		CompletedAt:        t.CompletedAt,
		CancelledAt:        t.CancelledAt,
	}
	if t.Client != nil {
		resp.ClientName = t.Client.Name
	}
	if t.Driver != nil {
		resp.DriverName = t.Driver.Name
	}
	return resp
}

// IsParticipant - клиент или назначенный моториста
func (t *Trip) IsParticipant(userID uint) bool {
	return t.ClientID == userID || (t.DriverID != nil && *t.DriverID == userID)
}
