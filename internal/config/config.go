package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/hash"
	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/pkg/db"
)

type Config struct {
	PORT              string
	LOG_LEVEL         string
	DB_HOST           string
	DB_PORT           string
	DB_USER           string
	DB_PASSWORD       string
	DB_NAME           string
	DB_MAX_OPEN_CONNS int
	DB_MAX_IDLE_CONNS int
	ES_URL            string
	ES_USER           string
	ES_PASSWORD       string
	JWT_SECRET        string
	REFRESH_SECRET    string
	KAFKA_ADDRESS     string
	UPLOAD_DIR        string
	ADMIN_USERNAME    string
	ADMIN_PASSWORD    string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		PORT:              getenvDefault("PORT", "8080"),
		LOG_LEVEL:         getenvDefault("LOG_LEVEL", "info"),
		DB_HOST:           os.Getenv("DB_HOST"),
		DB_PORT:           os.Getenv("DB_PORT"),
		DB_USER:           os.Getenv("DB_USER"),
		DB_PASSWORD:       os.Getenv("DB_PASSWORD"),
		DB_NAME:           os.Getenv("DB_NAME"),
		DB_MAX_OPEN_CONNS: getenvIntDefault("DB_MAX_OPEN_CONNS", 0),
		DB_MAX_IDLE_CONNS: getenvIntDefault("DB_MAX_IDLE_CONNS", 0),
		ES_URL:            os.Getenv("ES_URL"),
		ES_USER:           os.Getenv("ES_USER"),
		ES_PASSWORD:       os.Getenv("ES_PASSWORD"),
		JWT_SECRET:        os.Getenv("JWT_SECRET"),
		REFRESH_SECRET:    os.Getenv("REFRESH_SECRET"),
		KAFKA_ADDRESS:     os.Getenv("KAFKA_ADDRESS"),
		UPLOAD_DIR:        getenvDefault("UPLOAD_DIR", "static/uploads/parts"),
		ADMIN_USERNAME:    getenvDefault("ADMIN_USERNAME", "admin"),
		ADMIN_PASSWORD:    os.Getenv("ADMIN_PASSWORD"),
	}

	return config, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func InitDB() (*gorm.DB, error) {
	configuration, _ := LoadConfig()

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		configuration.DB_USER,
		configuration.DB_PASSWORD,
		configuration.DB_HOST,
		configuration.DB_PORT,
		configuration.DB_NAME,
	)
	database, err := db.Open(context.Background(), dsn, db.PoolOptions{
		MaxOpenConns: configuration.DB_MAX_OPEN_CONNS,
		MaxIdleConns: configuration.DB_MAX_IDLE_CONNS,
	})
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к БД: %w", err)
	}
	if err := Migrate(database); err != nil {
		return nil, fmt.Errorf("не удалось выполнить миграцию: %w", err)
	}
	return database, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.Part{},
		&models.PartImage{},
		&models.PartVideo{},
		&models.Sale{},
		&models.SaleItem{},
	)
}

// EnsureAdmin creates or updates the single admin account from configuration.
func EnsureAdmin(db *gorm.DB, cfg *Config) error {
	if cfg.ADMIN_PASSWORD == "" {
		return nil
	}

	passwordHash, err := hash.HashPassword(cfg.ADMIN_PASSWORD)
	if err != nil {
		return err
	}

	var admin models.User
	err = db.Where("username = ?", cfg.ADMIN_USERNAME).First(&admin).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		admin = models.User{
			Username:     cfg.ADMIN_USERNAME,
			PasswordHash: passwordHash,
			Role:         "admin",
		}
		return db.Create(&admin).Error
	case err != nil:
		return err
	default:
		admin.PasswordHash = passwordHash
		admin.Role = "admin"
		return db.Save(&admin).Error
	}
}
