package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

// Config is the runtime configuration of authctl.
type Config struct {
	DBPath            string
	SessionTTL        time.Duration
	InactivityTimeout time.Duration
	PhoneRegion       string
	JWKSURL           string
	IDToken           string
	LogLevel          string
	LogDev            bool
}

// LoadConfig reads an optional .env file and then the environment.
func LoadConfig() Config {
	_ = godotenv.Load()

	dev := os.Getenv("LOG_DEV") == "1"
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		if dev {
			level = "debug"
		} else {
			level = "info"
		}
	}

	return Config{
		DBPath:            getEnv("AUTH_DB_PATH", "file:session.db?cache=shared"),
		SessionTTL:        getDuration("AUTH_SESSION_TTL", auth.DefaultSessionTTL),
		InactivityTimeout: getDuration("AUTH_INACTIVITY_TIMEOUT", auth.DefaultInactivityTimeout),
		PhoneRegion:       getEnv("AUTH_PHONE_REGION", auth.DefaultPhoneRegion),
		JWKSURL:           strings.TrimSpace(os.Getenv("AUTH_JWKS_URL")),
		IDToken:           strings.TrimSpace(os.Getenv("AUTH_ID_TOKEN")),
		LogLevel:          strings.ToLower(level),
		LogDev:            dev,
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
