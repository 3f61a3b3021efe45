package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	FirebaseApiKey  string
	StorageBucket   string
	Environment     string
	JWTSecret       string
	JWTExpiry       int64

	// Chat tuning. Defaults mirror chatsync.DefaultConfig so the server
	// and embedded clients agree on timing behavior.
	HistoryLimit    int
	TypingExpiry    time.Duration
	PresenceOffline time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseApiKey:  getEnv("FIREBASE_API_KEY", ""),
		StorageBucket:   getEnv("STORAGE_BUCKET", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:       getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours

		HistoryLimit:    getEnvAsInt("CHAT_HISTORY_LIMIT", 200),
		TypingExpiry:    getEnvAsDuration("CHAT_TYPING_EXPIRY_MS", 3000),
		PresenceOffline: getEnvAsDuration("CHAT_PRESENCE_OFFLINE_MS", 30000),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultMillis int64) time.Duration {
	return time.Duration(getEnvAsInt64(key, defaultMillis)) * time.Millisecond
}
