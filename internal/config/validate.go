package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.Broker.URL, "ws://") && !strings.HasPrefix(c.Broker.URL, "wss://") {
		return fmt.Errorf("broker.url must be a ws:// or wss:// endpoint, got %q", c.Broker.URL)
	}
	if c.Broker.HeartbeatInterval <= 0 {
		return errors.New("broker.heartbeat_interval must be > 0")
	}
	if c.Broker.ReconnectDelay <= 0 {
		return errors.New("broker.reconnect_delay must be > 0")
	}
	if c.Broker.BufferSize < 1 {
		return errors.New("broker.buffer_size must be >= 1")
	}

	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.Command.Enabled && c.Command.Destination == "" {
		return errors.New("command.destination is required when command.enabled")
	}

	if c.Reseed.Interval <= 0 {
		return errors.New("reseed.interval must be > 0")
	}

	if len(c.Views) == 0 {
		return errors.New("at least one view is required")
	}
	seen := make(map[string]struct{}, len(c.Views))
	for _, v := range c.Views {
		if v.Name == "" {
			return errors.New("view name is required")
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("duplicate view name %q", v.Name)
		}
		seen[v.Name] = struct{}{}

		if v.Topic == "" {
			return fmt.Errorf("view %q: topic is required", v.Name)
		}
		if len(v.States) == 0 {
			return fmt.Errorf("view %q: at least one state is required", v.Name)
		}
		if _, err := v.RelevantStates(); err != nil {
			return err
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}
