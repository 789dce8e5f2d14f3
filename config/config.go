package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// Application configuration
	App AppConfig `json:"app"`

	// Attendance session configuration
	Attendance AttendanceConfig `json:"attendance"`

	// Janitor configuration
	Janitor JanitorConfig `json:"janitor"`

	// Live feed websocket configuration
	Feed FeedConfig `json:"feed"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// LoggingConfig holds logging-specific configuration
type LoggingConfig struct {
	Level string `json:"level"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Debug       bool   `json:"debug"`
}

// AttendanceConfig holds attendance session-specific configuration
type AttendanceConfig struct {
	SessionDuration time.Duration `json:"session_duration"`  // For how long a session stays redeemable after opening
	AtRiskThreshold int           `json:"at_risk_threshold"` // Percentage below which a student counts as at risk
	TokenBytes      int           `json:"token_bytes"`       // Number of random bytes in a session token
}

// JanitorConfig holds janitor-specific configuration
type JanitorConfig struct {
	ShortCleanInterval time.Duration `json:"short_clean_interval"` // Interval between expired-session sweeps
	FullCleanInterval  time.Duration `json:"full_clean_interval"`  // Interval between full database cleans
}

// FeedConfig holds live feed websocket-specific configuration
type FeedConfig struct {
	PingInterval time.Duration `json:"ping_interval"` // Time between pings on an idle feed connection
	WriteTimeout time.Duration `json:"write_timeout"` // Deadline for a single websocket write
}

var (
	instance *Config
	once     sync.Once
	mu       sync.RWMutex
)

// Get returns the singleton configuration instance
func Get() *Config {
	mu.RLock()
	if instance != nil {
		defer mu.RUnlock()
		return instance
	}
	mu.RUnlock()

	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		instance = loadConfig()
	})
	return instance
}

// Load loads configuration from environment variables (deprecated, use Get() instead)
func Load() *Config {
	return Get()
}

// load loads configuration from environment variables
func loadConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		App: AppConfig{
			Name:        getEnv("APP_NAME", "attendance-backend"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("ENV", "development"),
			Debug:       getEnvAsBool("DEBUG", false),
		},
		Attendance: AttendanceConfig{
			SessionDuration: getEnvAsDuration("ATTENDANCE_SESSION_DURATION", 15*time.Minute),
			AtRiskThreshold: getEnvAsInt("ATTENDANCE_AT_RISK_THRESHOLD", 70),
			TokenBytes:      getEnvAsInt("ATTENDANCE_TOKEN_BYTES", 16),
		},
		Janitor: JanitorConfig{
			ShortCleanInterval: getEnvAsDuration("JANITOR_SHORT_CLEAN_INTERVAL", 1*time.Minute),
			FullCleanInterval:  getEnvAsDuration("JANITOR_FULL_CLEAN_INTERVAL", 24*time.Hour),
		},
		Feed: FeedConfig{
			PingInterval: getEnvAsDuration("FEED_PING_INTERVAL", 30*time.Second),
			WriteTimeout: getEnvAsDuration("FEED_WRITE_TIMEOUT", 10*time.Second),
		},
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	return cfg
}

// validate validates the configuration
func (c *Config) validate() error {
	// Validate server port
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid server port: %s", c.Server.Port)
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production"}
	if !slices.Contains(validEnvs, c.App.Environment) {
		return fmt.Errorf("invalid environment: %s (must be one of: %s)",
			c.App.Environment, strings.Join(validEnvs, ", "))
	}

	// Validate log level
	validLevels := []string{"info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)",
			c.Logging.Level, strings.Join(validLevels, ", "))
	}

	// Validate attendance settings
	if c.Attendance.SessionDuration <= 0 {
		return fmt.Errorf("invalid session duration: %v (must be positive)", c.Attendance.SessionDuration)
	}
	if c.Attendance.AtRiskThreshold < 0 || c.Attendance.AtRiskThreshold > 100 {
		return fmt.Errorf("invalid at-risk threshold: %d (must be within 0-100)", c.Attendance.AtRiskThreshold)
	}
	// 10 bytes (80 bits) is the floor for a token that can not be guessed
	if c.Attendance.TokenBytes < 10 {
		return fmt.Errorf("invalid token bytes: %d (must be at least 10)", c.Attendance.TokenBytes)
	}

	return nil
}

// IsDevelopment returns true if the app is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the app is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetServerAddress returns the server address in the format "host:port"
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// Reload reloads the configuration (useful for testing or after loading .env files)
func Reload() {
	mu.Lock()
	defer mu.Unlock()
	once = sync.Once{}
	instance = nil
}

// ForceReload forces an immediate reload of the configuration
func ForceReload() {
	mu.Lock()
	defer mu.Unlock()
	instance = loadConfig()
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsBool gets an environment variable as boolean with a fallback value
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// getEnvAsInt gets an environment variable as integer with a fallback value
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvAsDuration gets an environment variable as duration with a fallback value
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}
