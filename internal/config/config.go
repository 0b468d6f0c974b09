package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	JWTSecret string

	// Database. Driver is "sqlite" or "postgres".
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// WhatsApp Cloud API
	WhatsAppAPIURL string
	WhatsAppToken  string
	PhoneNumberID  string
	VerifyToken    string

	// Outbound message queue
	QueueSize    int
	SendAttempts int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", "change-me-in-production"),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./crm.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "crm"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "crm"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v18.0"),
		WhatsAppToken:  getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:  getEnv("PHONE_NUMBER_ID", ""),
		VerifyToken:    getEnv("VERIFY_TOKEN", ""),

		QueueSize:    getEnvInt("QUEUE_SIZE", 256),
		SendAttempts: getEnvInt("SEND_ATTEMPTS", 3),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
