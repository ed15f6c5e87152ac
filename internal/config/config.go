package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig    `json:"database"`
	Server      ServerConfig      `json:"server"`
	Logging     LoggingConfig     `json:"logging"`
	Auth        AuthConfig        `json:"auth"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Port              int      `json:"port"`
	BindAddress       string   `json:"bind_address"`
	TrustProxyHeaders bool     `json:"trust_proxy_headers"` // Use X-Forwarded-For / X-Real-IP as the network origin
	TrustedProxies    []string `json:"trusted_proxies"`     // CIDRs or IPs of the proxies allowed to set those headers
	CORSAllowedOrigin string   `json:"cors_allowed_origin"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	File       string `json:"file"`        // Optional log file, empty means console only
	MaxSizeMB  int    `json:"max_size_mb"` // Max file size before rotation
	MaxBackups int    `json:"max_backups"` // Number of rotated files to keep
}

// AuthConfig controls authentication behavior
type AuthConfig struct {
	Mode                 string `json:"mode"`                   // "named", "shared" or "both"
	SessionTTLHours      int    `json:"session_ttl_hours"`      // Default: 168 (7 days)
	LockoutThreshold     int    `json:"lockout_threshold"`      // Default: 5
	LockoutWindowMinutes int    `json:"lockout_window_minutes"` // Default: 5
	MinPasswordLength    int    `json:"min_password_length"`    // Default: 6
	BcryptCost           int    `json:"bcrypt_cost"`            // 0 uses bcrypt.DefaultCost
}

// MaintenanceConfig controls scheduled housekeeping
type MaintenanceConfig struct {
	SessionCleanupSchedule string `json:"session_cleanup_schedule"` // Cron spec, empty disables
}

// Auth modes
const (
	AuthModeNamed  = "named"
	AuthModeShared = "shared"
	AuthModeBoth   = "both"
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "adminpanel.db",
		},
		Server: ServerConfig{
			Port:              8080,
			BindAddress:       "127.0.0.1",
			TrustedProxies:    []string{"127.0.0.1/32", "::1/128"},
			CORSAllowedOrigin: "*",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Auth: AuthConfig{
			Mode:                 AuthModeBoth,
			SessionTTLHours:      7 * 24,
			LockoutThreshold:     5,
			LockoutWindowMinutes: 5,
			MinPasswordLength:    6,
		},
		Maintenance: MaintenanceConfig{
			SessionCleanupSchedule: "@hourly",
		},
	}
}

// Load reads configuration from file and environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Unmarshal over the defaults so omitted sections keep them
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		cfg.applyDefaults()
	} else {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero values left by explicit empty entries in the file
func (c *Config) applyDefaults() {
	def := Default()
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.BindAddress == "" {
		c.Server.BindAddress = def.Server.BindAddress
	}
	if c.Server.CORSAllowedOrigin == "" {
		c.Server.CORSAllowedOrigin = def.Server.CORSAllowedOrigin
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = def.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = def.Logging.MaxBackups
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = def.Auth.Mode
	}
	if c.Auth.SessionTTLHours == 0 {
		c.Auth.SessionTTLHours = def.Auth.SessionTTLHours
	}
	if c.Auth.LockoutThreshold == 0 {
		c.Auth.LockoutThreshold = def.Auth.LockoutThreshold
	}
	if c.Auth.LockoutWindowMinutes == 0 {
		c.Auth.LockoutWindowMinutes = def.Auth.LockoutWindowMinutes
	}
	if c.Auth.MinPasswordLength == 0 {
		c.Auth.MinPasswordLength = def.Auth.MinPasswordLength
	}
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ADMINPANEL_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("ADMINPANEL_SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Server.Port)
	}
	if v := os.Getenv("ADMINPANEL_SERVER_BIND_ADDRESS"); v != "" {
		c.Server.BindAddress = v
	}
	if v := os.Getenv("ADMINPANEL_TRUST_PROXY_HEADERS"); v != "" {
		if v == "true" {
			c.Server.TrustProxyHeaders = true
		} else if v == "false" {
			c.Server.TrustProxyHeaders = false
		}
	}
	if v := os.Getenv("ADMINPANEL_TRUSTED_PROXIES"); v != "" {
		c.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("ADMINPANEL_CORS_ALLOWED_ORIGIN"); v != "" {
		c.Server.CORSAllowedOrigin = v
	}
	if v := os.Getenv("ADMINPANEL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ADMINPANEL_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("ADMINPANEL_AUTH_MODE"); v != "" {
		c.Auth.Mode = v
	}
	if v := os.Getenv("ADMINPANEL_SESSION_CLEANUP_SCHEDULE"); v != "" {
		c.Maintenance.SessionCleanupSchedule = v
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if strings.Contains(c.Database.Path, "://") {
		return fmt.Errorf("database path %q looks like a URL; a SQLite file path is required", c.Database.Path)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Port < 1024 && os.Geteuid() != 0 {
		return fmt.Errorf("privileged port %d requires root", c.Server.Port)
	}

	for _, p := range c.Server.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "/") {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("invalid trusted proxy %q: %w", p, err)
			}
		} else if net.ParseIP(p) == nil {
			return fmt.Errorf("invalid trusted proxy %q", p)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	switch c.Auth.Mode {
	case AuthModeNamed, AuthModeShared, AuthModeBoth:
	default:
		return fmt.Errorf("invalid auth mode: %s (must be named, shared, or both)", c.Auth.Mode)
	}
	if c.Auth.SessionTTLHours < 1 {
		return fmt.Errorf("session_ttl_hours must be at least 1")
	}
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("lockout_threshold must be at least 1")
	}
	if c.Auth.LockoutWindowMinutes < 1 {
		return fmt.Errorf("lockout_window_minutes must be at least 1")
	}
	if c.Auth.MinPasswordLength < 1 {
		return fmt.Errorf("min_password_length must be at least 1")
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("bcrypt_cost must be between 4 and 31")
	}

	if s := c.Maintenance.SessionCleanupSchedule; s != "" {
		if _, err := cronlib.ParseStandard(s); err != nil {
			return fmt.Errorf("invalid session_cleanup_schedule %q: %w", s, err)
		}
	}

	return nil
}

// SessionTTL returns the fixed session lifetime
func (a AuthConfig) SessionTTL() time.Duration {
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// LockoutWindow returns how long an origin stays blocked
func (a AuthConfig) LockoutWindow() time.Duration {
	return time.Duration(a.LockoutWindowMinutes) * time.Minute
}
