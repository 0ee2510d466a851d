package db

import (
	"fmt"
	"log"
	"os"

	"github.com/triagedesk/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect initializes the database connection
func Connect() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})

	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connected successfully")
}

// AutoMigrate runs database migrations in dependency order.
func AutoMigrate() error {
	migrations := []struct {
		name  string
		model any
	}{
		{"Team", &models.Team{}},
		{"Ticket", &models.Ticket{}},
		{"Comment", &models.Comment{}},
		{"GitHubRepository", &models.GitHubRepository{}},
		{"CIFailure", &models.CIFailure{}},
		{"AIMetric", &models.AIMetric{}},
		{"EvaluationRecord", &models.EvaluationRecord{}},
	}

	for _, m := range migrations {
		if err := DB.AutoMigrate(m.model); err != nil {
			return fmt.Errorf("%s migration failed: %w", m.name, err)
		}
		log.Printf("%s table migrated", m.name)
	}

	log.Println("All database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
