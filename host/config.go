// Package host runs a small action platform: a registry of deployed
// actions, an HTTP surface to invoke them, and a firehose of step
// events any number of subscribers can watch, grounded on sheens'
// crew.Machine (one registry entry per running machine) and its
// channel-based firehose of emitted messages.
package host

import (
	"os"

	"gopkg.in/yaml.v2"
)

// Config is a host service's on-disk configuration.
type Config struct {
	Bind       string `yaml:"bind"`
	DBPath     string `yaml:"dbPath"`
	MQTTBroker string `yaml:"mqttBroker,omitempty"`
	MQTTTopic  string `yaml:"mqttTopic,omitempty"`
}

// DefaultConfig returns the configuration composesvc runs with when
// no config file is given.
func DefaultConfig() Config {
	return Config{
		Bind:   ":8080",
		DBPath: "composer.db",
	}
}

// LoadConfig reads and parses a YAML config file at path.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
