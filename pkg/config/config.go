// Package config defines the tapd configuration surface and its file and
// environment loaders.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the full tapd configuration.
type Config struct {
	Capture CaptureConfig `json:"capture" yaml:"capture"`
	Inspect InspectConfig `json:"inspect" yaml:"inspect"`
	Forward ForwardConfig `json:"forward" yaml:"forward"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// CaptureConfig tunes the capture engine.
type CaptureConfig struct {
	// MaxEntries is the trace buffer capacity (default 100).
	MaxEntries int `json:"maxEntries,omitempty" yaml:"maxEntries,omitempty"`

	// MaxBodyBytes caps captured body bytes per direction (default 64KiB).
	MaxBodyBytes int64 `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty"`

	// Enabled controls recording at startup (default true).
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// RedactHeaders overrides the default header redaction list.
	RedactHeaders []string `json:"redactHeaders,omitempty" yaml:"redactHeaders,omitempty"`

	// IgnorePaths lists URL-path globs to skip entirely.
	IgnorePaths []string `json:"ignorePaths,omitempty" yaml:"ignorePaths,omitempty"`
}

// InspectConfig tunes the embedded inspection API.
type InspectConfig struct {
	// Port to listen on (default 4246).
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host to bind (default 127.0.0.1).
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// ForwardConfig tunes the optional MQTT forwarder. Forwarding is off
// unless BrokerURL is set.
type ForwardConfig struct {
	BrokerURL string `json:"brokerUrl,omitempty" yaml:"brokerUrl,omitempty"`
	Topic     string `json:"topic,omitempty" yaml:"topic,omitempty"`
	ClientID  string `json:"clientId,omitempty" yaml:"clientId,omitempty"`
	Username  string `json:"username,omitempty" yaml:"username,omitempty"`
	Password  string `json:"password,omitempty" yaml:"password,omitempty"`
}

// LogConfig tunes diagnostic logging.
type LogConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json (default text).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns the zero configuration; every consumer applies its own
// per-field defaults, so an empty Config is fully usable.
func Default() *Config {
	return &Config{}
}

// ApplyEnv overlays TAPD_* environment variables onto the configuration.
// Environment values win over file values.
//
//	TAPD_CAPTURE_ENABLED      true/false
//	TAPD_CAPTURE_MAX_ENTRIES  integer
//	TAPD_CAPTURE_MAX_BODY     integer bytes
//	TAPD_INSPECT_PORT         integer
//	TAPD_INSPECT_HOST         host or IP
//	TAPD_FORWARD_BROKER_URL   e.g. tcp://localhost:1883
//	TAPD_FORWARD_TOPIC        topic name
//	TAPD_LOG_LEVEL            debug/info/warn/error
//	TAPD_LOG_FORMAT           text/json
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv("TAPD_CAPTURE_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Capture.Enabled = &enabled
		}
	}
	if v, ok := os.LookupEnv("TAPD_CAPTURE_MAX_ENTRIES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Capture.MaxEntries = n
		}
	}
	if v, ok := os.LookupEnv("TAPD_CAPTURE_MAX_BODY"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Capture.MaxBodyBytes = n
		}
	}
	if v, ok := os.LookupEnv("TAPD_INSPECT_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Inspect.Port = n
		}
	}
	if v, ok := os.LookupEnv("TAPD_INSPECT_HOST"); ok {
		c.Inspect.Host = v
	}
	if v, ok := os.LookupEnv("TAPD_FORWARD_BROKER_URL"); ok {
		c.Forward.BrokerURL = v
	}
	if v, ok := os.LookupEnv("TAPD_FORWARD_TOPIC"); ok {
		c.Forward.Topic = v
	}
	if v, ok := os.LookupEnv("TAPD_LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv("TAPD_LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
}
