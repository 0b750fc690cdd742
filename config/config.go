// Package config loads node configuration from an optional YAML file plus
// environment variables, and watches the file for changes, delivering a
// reload notification rather than requiring a restart.
package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the node's startup and reloadable configuration.
type Config struct {
	NodeName    string `mapstructure:"node_name"`
	NodeID      int    `mapstructure:"node_id"`
	MountListen string `mapstructure:"mount_listen"`
	MaxActors   int    `mapstructure:"max_actors"`
	StorePath   string `mapstructure:"store_path"`
}

// defaultMountPort is the default mount listener port.
const defaultMountPort = 4200

// Load reads config from path (if non-empty) and environment variables
// (NODE_NAME, NODE_ID, ...), returning defaults for anything unset.
func Load(path string) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetDefault("mount_listen", fmt.Sprintf("0.0.0.0:%d", defaultMountPort))
	v.SetDefault("max_actors", 4096)

	v.SetEnvPrefix("") // NODE_NAME, NODE_ID read verbatim
	v.AutomaticEnv()
	v.BindEnv("node_name", "NODE_NAME")
	v.BindEnv("node_id", "NODE_ID")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, err
	}
	return &cfg, v, nil
}

// Watch arranges for onChange to be called whenever the config file backing
// v changes, using fsnotify the way v.WatchConfig does internally, but
// surfaced explicitly so callers can feed a ConfigChanged message into the
// running node instead of relying on a background goroutine mutating shared
// state directly.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(_ fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err == nil {
			onChange(&cfg)
		}
	})
	v.WatchConfig()
}
