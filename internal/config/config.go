package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/incident-desk/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Security SecurityConfig
	SLA      SLAConfig
	Audit    AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SecurityConfig defines account lockout and MFA policy.
type SecurityConfig struct {
	MaxLoginAttempts   int
	LockoutMinutes     int
	MFAWindow          int
	MFAIssuer          string
	MFAChallengeTTLSec int
	MFARequiredRoles   []domain.Role
}

// SLAConfig defines deadline computation and monitor cadence.
type SLAConfig struct {
	HoursCritical        int
	HoursHigh            int
	HoursMedium          int
	HoursLow             int
	MonitorIntervalSec   int
	WarningLookaheadMins int
}

// AuditConfig holds audit ledger options. Retention is enforced by an
// external administrative job, not by this service.
type AuditConfig struct {
	RetentionDays int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	mfaRoles, err := parseRoles(getEnv("SECURITY_MFA_REQUIRED_ROLES", "ADMINISTRATOR,SUPERVISOR"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "incident-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 30),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Security: SecurityConfig{
			MaxLoginAttempts:   getEnvAsInt("SECURITY_MAX_LOGIN_ATTEMPTS", 5),
			LockoutMinutes:     getEnvAsInt("SECURITY_LOCKOUT_MINUTES", 30),
			MFAWindow:          getEnvAsInt("SECURITY_MFA_WINDOW", 2),
			MFAIssuer:          getEnv("SECURITY_MFA_ISSUER", "IncidentDesk"),
			MFAChallengeTTLSec: getEnvAsInt("SECURITY_MFA_CHALLENGE_TTL_SECONDS", 300),
			MFARequiredRoles:   mfaRoles,
		},
		SLA: SLAConfig{
			HoursCritical:        getEnvAsInt("SLA_HOURS_CRITICAL", 2),
			HoursHigh:            getEnvAsInt("SLA_HOURS_HIGH", 8),
			HoursMedium:          getEnvAsInt("SLA_HOURS_MEDIUM", 24),
			HoursLow:             getEnvAsInt("SLA_HOURS_LOW", 72),
			MonitorIntervalSec:   getEnvAsInt("SLA_MONITOR_INTERVAL_SECONDS", 300),
			WarningLookaheadMins: getEnvAsInt("SLA_WARNING_LOOKAHEAD_MINUTES", 120),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvAsInt("AUDIT_RETENTION_DAYS", 365),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LockoutDuration returns the account lock window.
func (s SecurityConfig) LockoutDuration() time.Duration {
	return time.Duration(s.LockoutMinutes) * time.Minute
}

// MFAChallengeTTL returns how long a pending login challenge stays valid.
func (s SecurityConfig) MFAChallengeTTL() time.Duration {
	return time.Duration(s.MFAChallengeTTLSec) * time.Second
}

// RequiresMFA reports whether the role must have MFA enrolled.
func (s SecurityConfig) RequiresMFA(role domain.Role) bool {
	for _, r := range s.MFARequiredRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Hours returns the hours-per-priority table used for SLA deadlines.
func (s SLAConfig) Hours() map[domain.TicketPriority]int {
	return map[domain.TicketPriority]int{
		domain.TicketPriorityCritical: s.HoursCritical,
		domain.TicketPriorityHigh:     s.HoursHigh,
		domain.TicketPriorityMedium:   s.HoursMedium,
		domain.TicketPriorityLow:      s.HoursLow,
	}
}

// MonitorInterval returns the scan cadence.
func (s SLAConfig) MonitorInterval() time.Duration {
	return time.Duration(s.MonitorIntervalSec) * time.Second
}

// WarningLookahead returns the pre-breach notification window.
func (s SLAConfig) WarningLookahead() time.Duration {
	return time.Duration(s.WarningLookaheadMins) * time.Minute
}

func parseRoles(raw string) ([]domain.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]domain.Role, 0, len(parts))
	for _, p := range parts {
		role := domain.Role(strings.ToUpper(strings.TrimSpace(p)))
		if !role.Valid() {
			return nil, fmt.Errorf("invalid role in SECURITY_MFA_REQUIRED_ROLES: %q", p)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
