package config_test

import (
	"testing"
	"time"

	"pulse/backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HISTORY_LIMIT", "")

	cfg := config.Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, int64(config.DefaultHistoryLimit), cfg.HistoryLimit)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("JWT_EXPIRES_IN", "1h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("APP_ENV", "production")

	cfg := config.Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, int64(25), cfg.HistoryLimit)
	assert.Equal(t, time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HISTORY_LIMIT", "lots")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")

	cfg := config.Load()

	assert.Equal(t, int64(config.DefaultHistoryLimit), cfg.HistoryLimit)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_DayDurations(t *testing.T) {
	t.Setenv("JWT_EXPIRES_IN", "7d")

	cfg := config.Load()

	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpiresIn)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1d", want: 24 * time.Hour},
		{in: "30d", want: 30 * 24 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "d", wantErr: true},
		{in: "-2d", wantErr: true},
		{in: "1.5d", wantErr: true},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := config.ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
