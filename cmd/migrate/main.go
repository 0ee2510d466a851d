package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/triagedesk/backend/internal/db"
	"github.com/triagedesk/backend/internal/logger"
)

func main() {
	logger.Initialize()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	db.Connect()
	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed")
}
