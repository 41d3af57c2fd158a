package config

// Default values for optional configuration fields.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 1632
	DefaultEventBuffer = 256
	DefaultWSPort      = 1633
	DefaultWSPath      = "/ws"
	DefaultHealthPort  = 8080
	DefaultHealthPath  = "/health"
	DefaultLogLevel    = "info"
)

func (c *ServerConfig) applyDefaults() {
	if c.Listener.Host == "" {
		c.Listener.Host = DefaultHost
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = DefaultPort
	}

	if c.Broker.EventBuffer == 0 {
		c.Broker.EventBuffer = DefaultEventBuffer
	}

	if c.WebSocket.Host == "" {
		c.WebSocket.Host = DefaultHost
	}
	if c.WebSocket.Port == 0 {
		c.WebSocket.Port = DefaultWSPort
	}
	if c.WebSocket.Path == "" {
		c.WebSocket.Path = DefaultWSPath
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
