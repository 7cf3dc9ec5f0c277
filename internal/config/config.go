// Package config loads runtime settings from the environment with sane defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

type DispatchConfig struct {
	RefreshSeconds     int
	DefaultRadiusMiles float64
}

type TrackingConfig struct {
	StalenessSeconds int
	TrailLength      int
}

type SessionConfig struct {
	ExpirySeconds        int
	ReadyAttentionAfterM int
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Maps struct {
		APIKey string
	}
	Dispatch DispatchConfig
	Tracking TrackingConfig
	Session  SessionConfig
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("COURIERD_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("COURIERD_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("COURIERD_REDIS_ADDR", "")
	cfg.Firebase.ProjectID = envOrDefault("COURIERD_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("COURIERD_FIREBASE_CREDENTIALS", "")
	cfg.Maps.APIKey = envOrDefault("COURIERD_MAPS_API_KEY", "")
	cfg.Dispatch.RefreshSeconds = envOrDefaultInt("COURIERD_DISPATCH_REFRESH", 2)
	cfg.Dispatch.DefaultRadiusMiles = envOrDefaultFloat("COURIERD_DEFAULT_RADIUS_MILES", 10.0)
	cfg.Tracking.StalenessSeconds = envOrDefaultInt("COURIERD_LOCATION_STALE_AFTER", 30)
	cfg.Tracking.TrailLength = envOrDefaultInt("COURIERD_LOCATION_TRAIL_LEN", 20)
	cfg.Session.ExpirySeconds = envOrDefaultInt("COURIERD_SESSION_EXPIRY", 120)
	cfg.Session.ReadyAttentionAfterM = envOrDefaultInt("COURIERD_READY_ATTENTION_AFTER", 15)
	return cfg, nil
}

// StaleAfter returns the location freshness window as a duration.
func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.Tracking.StalenessSeconds) * time.Second
}

// SessionExpiry returns how long a silent session survives before the reaper
// forces it offline.
func (c Config) SessionExpiry() time.Duration {
	return time.Duration(c.Session.ExpirySeconds) * time.Second
}

// ReadyAttentionAfter returns how long an order may sit in ready before the
// attention monitor flags it.
func (c Config) ReadyAttentionAfter() time.Duration {
	return time.Duration(c.Session.ReadyAttentionAfterM) * time.Minute
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}
