package db

import (
	"collaborative-text-editor/internal/config"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=disable",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
	)

	level := logger.Info
	if cfg.Environment == "production" {
		level = logger.Error
	}
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      level,
			Colorful:      true,
		},
	)

	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		log.Printf("error connecting to db %v", err)
		return nil, err
	}
	log.Println("Success connecting to db")

	return database, nil
}

func Close(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err != nil {
		log.Printf("failed to get db handle %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("failed to close db %v", err)
	}
	log.Println("Closing DB")
}
