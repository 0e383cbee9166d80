package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/monkey-island/yookassa-payments/app/models"
	"github.com/monkey-island/yookassa-payments/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// Setup connects to Postgres and migrates the payment schema. The handle is
// returned instead of stored in a package global so that both consumer loops
// and the HTTP layer receive their dependencies explicitly.
func Setup() *gorm.DB {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.MustGetEnv("DB_USER"),
		env.MustGetEnv("DB_PASSWORD"),
		env.MustGetEnv("DB_NAME"),
		env.GetEnv("DB_PORT", "5432"),
	)

	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			if migrateErr := db.AutoMigrate(
				&models.User{},
				&models.YkPayment{},
				&models.YkRecurrentPayment{},
				&models.ReferralBonus{},
				&models.EventLog{},
			); migrateErr != nil {
				panic(migrateErr)
			}
			return db
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	panic(err)
}
