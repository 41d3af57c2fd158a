package config

import (
	"log/slog"
	"net"
	"strconv"
)

// ServerConfig is the root configuration for a chathubd instance.
type ServerConfig struct {
	Listener  ListenerConfig  `yaml:"listener"`
	Broker    BrokerConfig    `yaml:"broker"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log"`
}

// ListenerConfig holds the TCP bind address.
type ListenerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port form of the bind address.
func (l ListenerConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// BrokerConfig holds broker tuning.
type BrokerConfig struct {
	// EventBuffer is the capacity of the broker's inbound event channel.
	EventBuffer int `yaml:"event_buffer"`
}

// WebSocketConfig holds the optional WebSocket bridge settings. Disabled
// by default; when enabled, WebSocket peers speak the identical line
// protocol.
type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// Addr returns the host:port form of the bridge bind address.
func (w WebSocketConfig) Addr() string {
	return net.JoinHostPort(w.Host, strconv.Itoa(w.Port))
}

// HealthConfig holds the health/debug HTTP endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level to a slog.Level. Unknown values fall
// back to info; Validate rejects them earlier.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
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
