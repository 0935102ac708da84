package db

import (
	"collaborative-text-editor/internal/document"
	"collaborative-text-editor/internal/user"
	"context"
	"log"

	"gorm.io/gorm"
)

// Migrate runs database migrations
func Migrate(database *gorm.DB) {
	err := database.AutoMigrate(
		&user.User{},
		&document.Document{},
		&document.DocumentGrant{},
		&document.DocumentOperation{},
	)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData(database *gorm.DB) {
	userRepo := user.NewRepository(database)

	testUser := &user.User{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "password123",
	}

	ctx := context.Background()

	// Check if user exists
	_, err := userRepo.FindByEmail(ctx, testUser.Email)
	if err != nil {
		userService := user.NewService(userRepo)
		if err := userService.Register(ctx, testUser); err != nil {
			log.Printf("Error creating test user: %v", err)
		} else {
			log.Printf("Created test user: %s", testUser.Email)
		}
	} else {
		log.Printf("Test user already exists: %s", testUser.Email)
	}
}
