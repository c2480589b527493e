package client

import (
	"log"
	"time"

	"comolor-pos/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func InitSqliteClient(databaseURL string) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(databaseURL), &gorm.Config{
		// Unique-index violations must surface as gorm.ErrDuplicatedKey; the
		// ledger's dedup backstop depends on it.
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal(err)
	}

	// Connection pool (important for webhooks)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&model.Shop{},
		&model.Product{},
		&model.Sale{},
		&model.MpesaTransaction{},
		&model.LicensePayment{},
		&model.SystemSetting{},
	); err != nil {
		log.Fatal(err)
	}

	return db
}
