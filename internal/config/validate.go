package config

import (
	"fmt"
	"strings"
)

// Validate checks that all values are usable. Call after applyDefaults.
func (c *ServerConfig) Validate() error {
	if err := validatePort("listener.port", c.Listener.Port); err != nil {
		return err
	}

	if c.Broker.EventBuffer < 1 {
		return fmt.Errorf("broker.event_buffer must be >= 1, got %d", c.Broker.EventBuffer)
	}

	if c.WebSocket.Enabled {
		if err := validatePort("websocket.port", c.WebSocket.Port); err != nil {
			return err
		}
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			return fmt.Errorf("websocket.path must start with '/', got %q", c.WebSocket.Path)
		}
	}

	if err := validatePort("health.port", c.Health.Port); err != nil {
		return err
	}
	if !strings.HasPrefix(c.Health.Path, "/") {
		return fmt.Errorf("health.path must start with '/', got %q", c.Health.Path)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	return nil
}

func validatePort(field string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", field, port)
	}
	return nil
}
