package models

// All возвращает все модели для AutoMigrate
func All() []interface{} {
	return []interface{}{
		&User{},
		&DriverProfile{},
		&Package{},
		&PackagePurchase{},
		&Trip{},
		&Transaction{},
		&Rating{},
	}
}
