package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Clinic   ClinicConfig
	Audit    AuditConfig
	Legacy   LegacyConfig
	Reminder ReminderConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

type AuthConfig struct {
	JWTSecret       string
	PatientTokenTTL time.Duration
	StaffTokenTTL   time.Duration
	// LoginRatePerMinute caps patient login attempts per client address.
	LoginRatePerMinute int
	LoginBurst         int
}

// ClinicConfig holds clinic-level policy knobs.
type ClinicConfig struct {
	// TimeZone is used only for local calendar-day reporting; all stored
	// instants and the dedup guard operate in UTC.
	TimeZone string
	// DoseWindowHours is the rolling dedup window for dose logging.
	DoseWindowHours int
}

// Location resolves the configured reporting time zone.
func (c ClinicConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid clinic time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// AuditConfig holds configuration for the append-only audit trail
// (EventStoreDB). The trail is optional; the service runs without it.
type AuditConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

// LegacyConfig holds configuration for the one-way import from a legacy
// clinic EHR running on SQL Server. Disabled by default.
type LegacyConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	PollInterval time.Duration
}

type ReminderConfig struct {
	Enabled      bool
	Workers      int
	ScanInterval time.Duration
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "medtrack"),
			Password: getEnv("DB_PASSWORD", "medtrack"),
			Database: getEnv("DB_NAME", "medtrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			PatientTokenTTL:    getEnvDuration("PATIENT_TOKEN_TTL", 30*time.Minute),
			StaffTokenTTL:      getEnvDuration("STAFF_TOKEN_TTL", 8*time.Hour),
			LoginRatePerMinute: getEnvInt("LOGIN_RATE_PER_MINUTE", 10),
			LoginBurst:         getEnvInt("LOGIN_BURST", 5),
		},
		Clinic: ClinicConfig{
			TimeZone:        getEnv("CLINIC_TIMEZONE", "America/New_York"),
			DoseWindowHours: getEnvInt("DOSE_WINDOW_HOURS", 24),
		},
		Audit: AuditConfig{
			Enabled:  getEnvBool("AUDIT_ENABLED", false),
			Host:     getEnv("AUDIT_ESDB_HOST", "localhost"),
			Port:     getEnvInt("AUDIT_ESDB_PORT", 2113),
			Insecure: getEnvBool("AUDIT_ESDB_INSECURE", true),
			Username: getEnv("AUDIT_ESDB_USERNAME", ""),
			Password: getEnv("AUDIT_ESDB_PASSWORD", ""),
		},
		Legacy: LegacyConfig{
			Enabled:      getEnvBool("LEGACY_IMPORT_ENABLED", false),
			Host:         getEnv("LEGACY_DB_HOST", "localhost"),
			Port:         getEnvInt("LEGACY_DB_PORT", 1433),
			User:         getEnv("LEGACY_DB_USER", "sa"),
			Password:     getEnv("LEGACY_DB_PASSWORD", ""),
			Database:     getEnv("LEGACY_DB_NAME", "ClinicEHR"),
			SSLMode:      getEnv("LEGACY_DB_SSLMODE", "disable"),
			PollInterval: getEnvDuration("LEGACY_POLL_INTERVAL", 15*time.Minute),
		},
		Reminder: ReminderConfig{
			Enabled:      getEnvBool("REMINDERS_ENABLED", true),
			Workers:      getEnvInt("REMINDER_WORKERS", 2),
			ScanInterval: getEnvDuration("REMINDER_SCAN_INTERVAL", time.Hour),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
