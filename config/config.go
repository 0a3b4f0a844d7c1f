// Package config handles the optional dllbridge.toml server configuration.
// Flags and positional arguments override anything loaded here.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the full dllbridge.toml contents.
type Config struct {
	Server ServerConfig `toml:"server"`
	Trace  TraceConfig  `toml:"trace"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig configures the listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TraceConfig configures the invocation trace. An empty path disables it.
type TraceConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no file is present: loopback
// only, the original bridge's port, no trace.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 5000},
		Log:    LogConfig{Verbosity: 1},
	}
}

// Load reads path and overlays it on the defaults. A missing file is not
// an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host must not be empty")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative")
	}
	return nil
}
