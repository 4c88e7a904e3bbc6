package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mototaxi-backend/internal/logger"
	"mototaxi-backend/internal/models"
	"mototaxi-backend/internal/utils"
	"mototaxi-backend/internal/validation"

	"gorm.io/gorm"
)

type RegisterInput struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	Phone                string `json:"phone" binding:"required,max=20"`
	Document             string `json:"document" binding:"required,max=30"`
}

type RegisterMotoristaInput struct {
	RegisterInput
	VehicleBrand  string `json:"vehicle_brand" binding:"required,max=100"`
	VehicleModel  string `json:"vehicle_model" binding:"required,max=100"`
	VehiclePlate  string `json:"vehicle_plate" binding:"required,max=20"`
	VehicleColor  string `json:"vehicle_color" binding:"omitempty,max=50"`
	VehicleYear   int    `json:"vehicle_year" binding:"required,gte=1980,lte=2100"`
	LicenseNumber string `json:"license_number" binding:"required,max=50"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileInput struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email    *string `json:"email" binding:"omitempty,email,max=255"`
	Phone    *string `json:"phone" binding:"omitempty,max=20"`
	PhotoURL *string `json:"photo_url" binding:"omitempty,max=2048"`
}

type ChangePasswordInput struct {
	CurrentPassword         string `json:"current_password" binding:"required"`
	NewPassword             string `json:"new_password" binding:"required,min=8"`
	NewPasswordConfirmation string `json:"new_password_confirmation" binding:"required,eqfield=NewPassword"`
}

// AuthResult - пользователь и выданный ему токен
type AuthResult struct {
	User  *models.User
	Token string
}

type UserService struct {
	db      *gorm.DB
	jwt     *utils.JWTManager
	revoker *utils.TokenRevoker
	log     *logger.Logger
}

func NewUserService(db *gorm.DB, jwt *utils.JWTManager, revoker *utils.TokenRevoker, log *logger.Logger) *UserService {
	return &UserService{db: db, jwt: jwt, revoker: revoker, log: log}
}

// IsActive сообщает, существует ли пользователь и не удален ли он
func (s *UserService) IsActive(ctx context.Context, userID uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("ошибка проверки пользователя: %w", err)
	}
	return n > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailTaken учитывает и удаленные записи: на email стоит уникальный индекс
func emailTaken(tx *gorm.DB, email string, exceptID uint) (bool, error) {
	var count int64
	q := tx.Unscoped().Model(&models.User{}).Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("ошибка проверки email: %w", err)
	}
	return count > 0, nil
}

func (s *UserService) newUser(tx *gorm.DB, in RegisterInput, role models.Role) (*models.User, error) {
	email := normalizeEmail(in.Email)
	taken, err := emailTaken(tx, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, validation.NewError("email", "email уже зарегистрирован")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    email,
		Password: hash,
		Phone:    strings.TrimSpace(in.Phone),
		Document: strings.TrimSpace(in.Document),
		Role:     role,
	}
	if err := tx.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validation.NewError("email", "email уже зарегистрирован")
		}
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}
	return user, nil
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, _, err := s.jwt.GenerateJWT(user.ID, string(user.Role))
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Register создает клиента
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	user, err := s.newUser(s.db.WithContext(ctx), in, models.RoleClient)
	if err != nil {
		return nil, err
	}

	s.log.Info(logger.Entry{Action: "user_registered", UserID: user.ID, Fields: logger.Fields{"role": user.Role}})
	return s.issue(user)
}

// CreateAdmin - учетная запись администратора. Через API не доступна,
// используется из motoctl.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.newUser(s.db.WithContext(ctx), in, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	s.log.Info(logger.Entry{Action: "admin_created", UserID: user.ID})
	return user, nil
}

// RegisterMotorista создает пользователя-мотористу и его профиль одной транзакцией.
// Профиль начинает в статусах pending и offline.
func (s *UserService) RegisterMotorista(ctx context.Context, in RegisterMotoristaInput) (*AuthResult, error) {
	var user *models.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plate := strings.ToUpper(strings.TrimSpace(in.VehiclePlate))

		var count int64
		if err := tx.Model(&models.DriverProfile{}).Where("vehicle_plate = ?", plate).Count(&count).Error; err != nil {
			return fmt.Errorf("ошибка проверки номера: %w", err)
		}
		if count > 0 {
			return validation.NewError("vehicle_plate", "номер уже зарегистрирован")
		}

		var err error
		user, err = s.newUser(tx, in.RegisterInput, models.RoleMotorista)
		if err != nil {
			return err
		}

		profile := &models.DriverProfile{
			UserID:           user.ID,
			VehicleBrand:     strings.TrimSpace(in.VehicleBrand),
			VehicleModel:     strings.TrimSpace(in.VehicleModel),
			VehiclePlate:     plate,
			VehicleColor:     strings.TrimSpace(in.VehicleColor),
			VehicleYear:      in.VehicleYear,
			LicenseNumber:    strings.TrimSpace(in.LicenseNumber),
			ValidationStatus: models.ValidationPending,
			Status:           models.DriverOffline,
		}
		if err := tx.Create(profile).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return validation.NewError("vehicle_plate", "номер уже зарегистрирован")
			}
			return fmt.Errorf("ошибка при создании профиля мотористы: %w", err)
		}
		user.DriverProfile = profile
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(logger.Entry{Action: "motorista_registered", UserID: user.ID})
	return s.issue(user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("DriverProfile").
		Where("email = ?", normalizeEmail(in.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if !utils.CheckPassword(user.Password, in.Password) {
		s.log.Warn(logger.Entry{Action: "login_failed", UserID: user.ID})
		return nil, ErrInvalidCredentials
	}
	return s.issue(&user)
}

// Logout отзывает текущий токен
func (s *UserService) Logout(ctx context.Context, claims *utils.Claims) error {
	return s.revoker.Revoke(ctx, claims)
}

func (s *UserService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("DriverProfile").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	db := s.db.WithContext(ctx)

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.PhotoURL != nil {
		updates["photo_url"] = strings.TrimSpace(*in.PhotoURL)
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != user.Email {
			taken, err := emailTaken(db, email, userID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, validation.NewError("email", "email уже зарегистрирован")
			}
			updates["email"] = email
		}
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := db.Model(user).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, validation.NewError("email", "email уже зарегистрирован")
		}
		return nil, fmt.Errorf("ошибка обновления профиля: %w", err)
	}
	return s.Profile(ctx, userID)
}

func (s *UserService) ChangePassword(ctx context.Context, userID uint, in ChangePasswordInput) error {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(user.Password, in.CurrentPassword) {
		return validation.NewError("current_password", "неверный текущий пароль")
	}

	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", hash).Error; err != nil {
		return fmt.Errorf("ошибка смены пароля: %w", err)
	}

	s.log.Info(logger.Entry{Action: "password_changed", UserID: userID})
	return nil
}

// DeleteAccount обезличивает пользователя, делает пароль непригодным,
// переводит мотористу в offline и мягко удаляет запись. Все токены отзываются.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	hash, err := utils.UnusableHash()
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка поиска пользователя: %w", err)
		}

		var active int64
		if err := tx.Model(&models.Trip{}).
			Where("(client_id = ? OR driver_id = ?) AND status IN ?", userID, userID, models.ActiveTripStatuses).
			Count(&active).Error; err != nil {
			return fmt.Errorf("ошибка проверки поездок: %w", err)
		}
		if active > 0 {
			return ErrActiveTripExists
		}

		if err := tx.Model(&user).Updates(map[string]interface{}{
			"name":      "Usuario eliminado",
			"email":     fmt.Sprintf("deleted-%d-%d@anonymized.invalid", user.ID, time.Now().UnixNano()),
			"phone":     "",
			"document":  "",
			"photo_url": "",
			"password":  hash,
		}).Error; err != nil {
			return fmt.Errorf("ошибка обезличивания пользователя: %w", err)
		}

		if user.Role == models.RoleMotorista {
			if err := tx.Model(&models.DriverProfile{}).Where("user_id = ?", userID).
				Updates(map[string]interface{}{
					"status":    models.DriverOffline,
					"latitude":  nil,
					"longitude": nil,
				}).Error; err != nil {
				return fmt.Errorf("ошибка обновления профиля мотористы: %w", err)
			}
		}

		if err := tx.Delete(&user).Error; err != nil {
			return fmt.Errorf("ошибка удаления пользователя: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.revoker.RevokeUser(ctx, userID); err != nil {
		s.log.Error(logger.Entry{Action: "revoke_user_tokens_failed", UserID: userID, Err: err})
	}

	s.log.Info(logger.Entry{Action: "account_deleted", UserID: userID})
	return nil
}
