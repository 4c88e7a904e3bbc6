package models

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleClient    Role = "cliente"
	RoleMotorista Role = "motorista"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleMotorista, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID            uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name          string         `json:"name" gorm:"type:varchar(255);not null"`
	Email         string         `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Password      string         `json:"-" gorm:"type:varchar(255);not null"`
	Phone         string         `json:"phone" gorm:"type:varchar(20)"`
	Document      string         `json:"document" gorm:"type:varchar(30)"`
	Role          Role           `json:"role" gorm:"type:varchar(20);default:'cliente';index"`
	PhotoURL      string         `json:"photo_url" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	DriverProfile *DriverProfile `json:"driver_profile,omitempty" gorm:"foreignKey:UserID"`
}

type UserResponse struct {
	ID            uint                   `json:"id"`
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	Phone         string                 `json:"phone"`
	Document      string                 `json:"document"`
	Role          Role                   `json:"role"`
	PhotoURL      string                 `json:"photo_url,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	DriverProfile *DriverProfileResponse `json:"driver_profile,omitempty"`
}

func (u *User) Response() UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Document:  u.Document,
		Role:      u.Role,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
	}
	if u.DriverProfile != nil {
		p := u.DriverProfile.Response()
		resp.DriverProfile = &p
	}
	return resp
}

// AfterFind приводит путь к фото к абсолютному виду
func (u *User) AfterFind(tx *gorm.DB) error {
	if u.PhotoURL != "" && u.PhotoURL[0] != '/' && !isURL(u.PhotoURL) {
		u.PhotoURL = "/" + u.PhotoURL
	}
	return nil
}

func isURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}
