package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"AUTH_DB_PATH", "AUTH_SESSION_TTL", "AUTH_INACTIVITY_TIMEOUT", "AUTH_PHONE_REGION", "AUTH_JWKS_URL", "LOG_LEVEL", "LOG_DEV"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, "file:session.db?cache=shared", cfg.DBPath)
	assert.Equal(t, auth.DefaultSessionTTL, cfg.SessionTTL)
	assert.Equal(t, auth.DefaultInactivityTimeout, cfg.InactivityTimeout)
	assert.Equal(t, "IN", cfg.PhoneRegion)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogDev)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("AUTH_DB_PATH", "file:other.db")
	t.Setenv("AUTH_SESSION_TTL", "2h")
	t.Setenv("AUTH_INACTIVITY_TIMEOUT", "not-a-duration")
	t.Setenv("AUTH_PHONE_REGION", "US")
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")

	cfg := LoadConfig()
	assert.Equal(t, "file:other.db", cfg.DBPath)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, auth.DefaultInactivityTimeout, cfg.InactivityTimeout)
	assert.Equal(t, "US", cfg.PhoneRegion)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogDev)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("chatty"))
}
