package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the server configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultGRPCPort          = 50051
	DefaultWSPath            = "/"
	DefaultLogLevel          = "info"
	DefaultBroadcastInterval = 1 * time.Second
	DefaultSecurityID        = "100"
	DefaultMinPrice          = 1
	DefaultMaxPrice          = 1000
	DefaultSendBuffer        = 16
	DefaultWriteTimeout      = 10 * time.Second
	DefaultPongWait          = 60 * time.Second
	DefaultReadLimit         = 4096
)

// Config holds the server-side configuration parsed from the `server:` section
// of the config file.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort serves the WebSocket endpoint, the REST API and /metrics.
	HTTPPort int `yaml:"http_port"`

	// GRPCPort serves grpc.health.v1.Health. Zero disables the gRPC listener.
	GRPCPort int `yaml:"grpc_port"`

	// WSPath is where the WebSocket endpoint is mounted.
	WSPath string `yaml:"ws_path"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Quote      QuoteConfig      `yaml:"quote"`
	Connection ConnectionConfig `yaml:"connection"`
}

// BroadcastConfig controls the periodic fan-out.
type BroadcastConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// QuoteConfig controls the placeholder quote source.
type QuoteConfig struct {
	SecurityID string `yaml:"security_id"`
	MinPrice   int    `yaml:"min_price"`
	MaxPrice   int    `yaml:"max_price"`
}

// ConnectionConfig tunes each accepted WebSocket connection.
type ConnectionConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PongWait     time.Duration `yaml:"pong_wait"`
	ReadLimit    int64         `yaml:"read_limit"`
}

// Level returns the slog level named by LogLevel.
func (s ServerConfig) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config pre-populated with default values. It is also what the
// server runs with when no config file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			GRPCPort: DefaultGRPCPort,
			WSPath:   DefaultWSPath,
			LogLevel: DefaultLogLevel,
			Broadcast: BroadcastConfig{
				Interval: DefaultBroadcastInterval,
			},
			Quote: QuoteConfig{
				SecurityID: DefaultSecurityID,
				MinPrice:   DefaultMinPrice,
				MaxPrice:   DefaultMaxPrice,
			},
			Connection: ConnectionConfig{
				SendBuffer:   DefaultSendBuffer,
				WriteTimeout: DefaultWriteTimeout,
				PongWait:     DefaultPongWait,
				ReadLimit:    DefaultReadLimit,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	if s.GRPCPort < 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [0, 65535]", s.GRPCPort)
	}
	if s.GRPCPort != 0 && s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("server.grpc_port and server.http_port must differ (both %d)", s.HTTPPort)
	}
	if !strings.HasPrefix(s.WSPath, "/") {
		return fmt.Errorf("server.ws_path %q must start with /", s.WSPath)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level %q unknown: want debug|info|warn|error", s.LogLevel)
	}
	if s.Broadcast.Interval <= 0 {
		return fmt.Errorf("server.broadcast.interval must be positive")
	}
	if s.Quote.SecurityID == "" {
		return fmt.Errorf("server.quote.security_id is required")
	}
	if s.Quote.MinPrice > s.Quote.MaxPrice {
		return fmt.Errorf("server.quote.min_price %d exceeds max_price %d", s.Quote.MinPrice, s.Quote.MaxPrice)
	}
	if s.Connection.SendBuffer <= 0 {
		return fmt.Errorf("server.connection.send_buffer must be positive")
	}
	if s.Connection.WriteTimeout <= 0 {
		return fmt.Errorf("server.connection.write_timeout must be positive")
	}
	if s.Connection.PongWait <= 0 {
		return fmt.Errorf("server.connection.pong_wait must be positive")
	}
	if s.Connection.ReadLimit <= 0 {
		return fmt.Errorf("server.connection.read_limit must be positive")
	}
	return nil
}
