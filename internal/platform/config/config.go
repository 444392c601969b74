package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrNotConfigured is returned by Validate when a required credential is missing.
var ErrNotConfigured = errors.New("required configuration is missing")

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CFBaseURL   string
	CFAPIKey    string
	CFAPISecret string
	CFTimeout   time.Duration

	Timezone         string
	CutoffUnix       int64
	PacingDelay      time.Duration
	AvatarPacing     time.Duration
	TrackerSchedule  string
	DailySchedule    string
	ContestSchedule  string
	RatingSchedule   string
	QuietHourStart   int
	QuietHourEnd     int
	SweepLockKey     string
	LockTTLSeconds   int
	CORSAllowOrigins []string

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:    getEnv("API_PORT", "3001"),
		JWTKey:     []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:     time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 24)) * time.Hour,
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "tracking_cf"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		CFBaseURL:   getEnv("CF_BASE_URL", "https://codeforces.com/api"),
		CFAPIKey:    getEnv("API_KEY_CF", ""),
		CFAPISecret: getEnv("API_SECRET_CF", ""),
		CFTimeout:   time.Duration(getEnvAsInt("CF_TIMEOUT_SECONDS", 15)) * time.Second,

		Timezone:         getEnv("TZ_TRACKER", "America/Lima"),
		CutoffUnix:       int64(getEnvAsInt("TRACKER_CUTOFF_UNIX", 1735689600)),
		PacingDelay:      time.Duration(getEnvAsInt("TRACKER_PACING_MS", 500)) * time.Millisecond,
		AvatarPacing:     time.Duration(getEnvAsInt("TRACKER_AVATAR_PACING_MS", 100)) * time.Millisecond,
		TrackerSchedule:  getEnv("TRACKER_SCHEDULE", "0,30 * * * *"),
		DailySchedule:    getEnv("TRACKER_DAILY_SCHEDULE", "0 0 * * *"),
		ContestSchedule:  getEnv("TRACKER_CONTEST_SCHEDULE", "0 3 * * *"),
		RatingSchedule:   getEnv("TRACKER_RATING_SCHEDULE", "0 1 * * *"),
		QuietHourStart:   getEnvAsInt("TRACKER_QUIET_START", 3),
		QuietHourEnd:     getEnvAsInt("TRACKER_QUIET_END", 8),
		SweepLockKey:     getEnv("TRACKER_SWEEP_LOCK_KEY", "tracker:sweep:lock"),
		LockTTLSeconds:   getEnvAsInt("LOCK_TTL_SECONDS", 1800),
		CORSAllowOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode +
		" timezone=UTC"

	return AppConfig
}

// Validate reports missing judge credentials. Callers treat the error as fatal.
func (c *Config) Validate() error {
	var missing []string
	if c.CFAPIKey == "" {
		missing = append(missing, "API_KEY_CF")
	}
	if c.CFAPISecret == "" {
		missing = append(missing, "API_SECRET_CF")
	}
	if len(missing) > 0 {
		return errors.Join(ErrNotConfigured, errors.New(strings.Join(missing, ", ")))
	}
	return nil
}

// Location resolves the tracker time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("Invalid timezone %q, using UTC: %v", c.Timezone, err)
		return time.UTC
	}
	return loc
}

// Cutoff is the instant before which submissions are never ingested.
func (c *Config) Cutoff() time.Time {
	return time.Unix(c.CutoffUnix, 0).UTC()
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
