package services

import "errors"

var (
	ErrNotFound           = errors.New("запись не найдена")
	ErrForbidden          = errors.New("доступ запрещен")
	ErrInvalidCredentials = errors.New("неверный email или пароль")

	ErrInsufficientBalance = errors.New("недостаточно средств на балансе")
	ErrNoUsablePackage     = errors.New("нет активного форфета с доступными поездками")
	ErrPackageInactive     = errors.New("форфет недоступен для покупки")
	ErrTripNotCompleted    = errors.New("оценить можно только завершенную поездку")

	ErrDriverNotApproved  = errors.New("моториста не прошел проверку")
	ErrDriverNotAvailable = errors.New("моториста сейчас недоступен")

	ErrTripAlreadyTaken  = errors.New("поездка уже принята другим мотористой")
	ErrActiveTripExists  = errors.New("уже есть незавершенная поездка")
	ErrAlreadyRated      = errors.New("поездка уже оценена")
	ErrInvalidTransition = errors.New("недопустимый переход состояния поездки")
)
