package db

import (
	"log"
	"tourledger/src/config"
	"tourledger/src/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	_db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		return nil, err
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Printf("Error establishing connection to database: %s\n", err.Error())
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)

	return _db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Booking{},
		&models.GiftCard{},
		&models.GiftCardTransaction{},
		&models.BillingProfile{},
	)
}
