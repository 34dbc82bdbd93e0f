package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBrokerURL          = "ws://localhost:8080/ws"
	DefaultHeartbeatInterval  = 10 * time.Second
	DefaultReconnectDelay     = 5 * time.Second
	DefaultDialTimeout        = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 1024
	DefaultAPIBaseURL         = "http://localhost:8080/api"
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultCommandDestination = "/app/order/state"
	DefaultReseedInterval     = 5 * time.Minute
	DefaultReseedTimeout      = 10 * time.Second
	DefaultHealthPort         = 9090
	DefaultHealthPath         = "/healthz"
)

// DefaultViews returns the standard three dashboards and their
// relevant-state sets.
func DefaultViews() []ViewConfig {
	return []ViewConfig{
		{
			Name:   "cajero",
			Topic:  "/topic/dashboard/cajero",
			States: []string{"INCOMING", "STANDBY", "PREPARING", "READY"},
		},
		{
			Name:   "cocina",
			Topic:  "/topic/dashboard/cocina",
			States: []string{"STANDBY", "PREPARING"},
		},
		{
			Name:   "delivery",
			Topic:  "/topic/dashboard/delivery",
			States: []string{"READY", "DELIVERING"},
		},
	}
}

func (c *SyncConfig) applyDefaults() {
	if c.Broker.URL == "" {
		c.Broker.URL = DefaultBrokerURL
	}
	if c.Broker.HeartbeatInterval == 0 {
		c.Broker.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Broker.ReconnectDelay == 0 {
		c.Broker.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Broker.DialTimeout == 0 {
		c.Broker.DialTimeout = DefaultDialTimeout
	}
	if c.Broker.WriteTimeout == 0 {
		c.Broker.WriteTimeout = DefaultWriteTimeout
	}
	if c.Broker.BufferSize == 0 {
		c.Broker.BufferSize = DefaultBufferSize
	}

	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Command.Destination == "" {
		c.Command.Destination = DefaultCommandDestination
	}

	if c.Reseed.Interval == 0 {
		c.Reseed.Interval = DefaultReseedInterval
	}
	if c.Reseed.Timeout == 0 {
		c.Reseed.Timeout = DefaultReseedTimeout
	}

	if len(c.Views) == 0 {
		c.Views = DefaultViews()
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}
