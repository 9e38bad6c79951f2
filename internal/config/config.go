// Package config loads the marketauth service settings from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	marketAuth "github.com/MrEthical07/marketAuth"
	"github.com/MrEthical07/marketAuth/internal/logger"
	"github.com/MrEthical07/marketAuth/sqlstore"
	"github.com/MrEthical07/marketAuth/throttle"
)

// Service is the resolved service configuration.
type Service struct {
	Port        string
	Database    sqlstore.Config
	RedisAddr   string
	JWTSecret   string
	JWTTTL      time.Duration
	Policy      throttle.Policy
	FailOpen    bool
	CORSOrigins []string
	Log         logger.Options
	Metrics     bool
	Audit       bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5000")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "marketplace.db")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("THROTTLE_PRESET", "standard")
	v.SetDefault("THROTTLE_THRESHOLD", 0)
	v.SetDefault("THROTTLE_LOCKOUT", "0s")
	v.SetDefault("THROTTLE_FAIL_OPEN", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("LOG_ENV", "development")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("AUDIT_ENABLED", true)
}

// Load reads envFiles (".env" when none are given) into the process
// environment without overriding variables that are already set, then
// resolves settings from the environment. Missing env files are ignored.
func Load(envFiles ...string) (*Service, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Service, error) {
	dialect, err := sqlstore.ParseDialect(v.GetString("DATABASE_DRIVER"))
	if err != nil {
		return nil, err
	}

	preset := v.GetString("THROTTLE_PRESET")
	policy, ok := throttle.PolicyByName(preset)
	if !ok {
		return nil, fmt.Errorf("unknown THROTTLE_PRESET %q", preset)
	}
	if n := v.GetInt("THROTTLE_THRESHOLD"); n != 0 {
		policy.Threshold = n
	}
	if d := v.GetDuration("THROTTLE_LOCKOUT"); d != 0 {
		policy.LockoutDuration = d
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	cfg := &Service{
		Port: v.GetString("PORT"),
		Database: sqlstore.Config{
			Dialect:     dialect,
			DSN:         v.GetString("DATABASE_URL"),
			BusyTimeout: 5 * time.Second,
		},
		RedisAddr:   strings.TrimSpace(v.GetString("REDIS_ADDR")),
		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTTTL:      v.GetDuration("JWT_TTL"),
		Policy:      policy,
		FailOpen:    v.GetBool("THROTTLE_FAIL_OPEN"),
		CORSOrigins: splitList(v.GetString("CORS_ORIGINS")),
		Log: logger.Options{
			Env:      v.GetString("LOG_ENV"),
			FilePath: v.GetString("LOG_FILE"),
		},
		Metrics: v.GetBool("METRICS_ENABLED"),
		Audit:   v.GetBool("AUDIT_ENABLED"),
	}

	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 bytes")
	}
	if cfg.JWTTTL <= 0 {
		return nil, errors.New("JWT_TTL must be > 0")
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

// Engine translates the service settings into an engine config.
func (s *Service) Engine() marketAuth.Config {
	cfg := marketAuth.DefaultConfig()
	cfg.Throttle.Threshold = s.Policy.Threshold
	cfg.Throttle.LockoutDuration = s.Policy.LockoutDuration
	cfg.Throttle.FailOpen = s.FailOpen
	cfg.JWT.PrivateKey = []byte(s.JWTSecret)
	cfg.JWT.AccessTTL = s.JWTTTL
	cfg.Metrics.Enabled = s.Metrics
	cfg.Metrics.EnableLatencyHistograms = s.Metrics
	cfg.Audit.Enabled = s.Audit
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
