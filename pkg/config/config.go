package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort         string
	FirebaseProject    string
	Environment        string
	PollInterval       time.Duration
	ControllerIdleTTL  time.Duration
	MessagesCollection string
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		FirebaseProject:    getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:        getEnv("ENVIRONMENT", "development"),
		PollInterval:       time.Duration(getEnvAsInt64("SYNC_POLL_INTERVAL_SECONDS", 60)) * time.Second,
		ControllerIdleTTL:  time.Duration(getEnvAsInt64("CONTROLLER_IDLE_TTL_MINUTES", 30)) * time.Minute,
		MessagesCollection: getEnv("MESSAGES_COLLECTION", "messages"),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
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
