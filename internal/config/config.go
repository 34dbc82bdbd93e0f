package config

import (
	"fmt"
	"time"

	"github.com/mesafina/ordersync/internal/model"
)

// SyncConfig is the root configuration for a sync daemon instance.
type SyncConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Broker   BrokerConfig   `yaml:"broker"`
	API      APIConfig      `yaml:"api"`
	Command  CommandConfig  `yaml:"command"`
	Reseed   ReseedConfig   `yaml:"reseed"`
	Views    []ViewConfig   `yaml:"views"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// BrokerConfig holds the push-messaging connection settings.
type BrokerConfig struct {
	URL               string        `yaml:"url"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	BufferSize        int           `yaml:"buffer_size"`
}

// APIConfig holds the REST collaborator settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// CommandConfig holds the secondary push write path. Disabled by default:
// the REST endpoint is the write path of record.
type CommandConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Destination string `yaml:"destination"`
}

// ReseedConfig holds the periodic REST reseed settings.
type ReseedConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ViewConfig declares one dashboard view: its topic and the order states
// it displays.
type ViewConfig struct {
	Name   string   `yaml:"name"`
	Topic  string   `yaml:"topic"`
	States []string `yaml:"states"`
}

// HealthConfig holds the stats/health HTTP endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// RelevantStates resolves the view's state names to a StateSet.
func (v ViewConfig) RelevantStates() (model.StateSet, error) {
	set := make(model.StateSet, len(v.States))
	for _, name := range v.States {
		s, ok := model.ParseState(name)
		if !ok {
			return nil, fmt.Errorf("view %q: unknown state %q", v.Name, name)
		}
		set[s] = struct{}{}
	}
	return set, nil
}
