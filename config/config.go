// Package config loads the YAML application configuration. The file is
// decoded in two steps: yaml.v3 produces the raw section maps, then
// mapstructure fills the typed config structs the components already
// declare, so every section reuses the component's own tags and Validate.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/network/dispatcher"
	"github.com/dvellum/framelib/network/transport/tcp"
	"github.com/dvellum/framelib/network/transport/udp"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the decoded application configuration. TCP and UDP are nil
// when their sections are absent; the other sections always carry at
// least their defaults.
type Config struct {
	Log        *log.LogCfg
	Wire       *log.WireCfg
	Dispatcher *dispatcher.DispatcherConfig
	TCP        *tcp.TCPTransportCfg
	UDP        *udp.UDPTransportCfg

	// Plugin holds the raw plugin section, keyed by plugin type then
	// factory name. plugin.Manager.SetupPlugins consumes it as is.
	Plugin map[string]any
}

// Load reads and decodes the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration data, applies defaults and validates every
// present section.
func Parse(data []byte) (*Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	cfg := &Config{
		Log:        defaultLogCfg(),
		Wire:       &log.WireCfg{},
		Dispatcher: &dispatcher.DispatcherConfig{},
	}

	if err := decodeSection(raw, "log", cfg.Log); err != nil {
		return nil, err
	}
	if err := decodeSection(raw, "wirelog", cfg.Wire); err != nil {
		return nil, err
	}
	if err := decodeSection(raw, "dispatcher", cfg.Dispatcher); err != nil {
		return nil, err
	}

	if _, ok := raw["tcp"]; ok {
		cfg.TCP = &tcp.TCPTransportCfg{}
		if err := decodeSection(raw, "tcp", cfg.TCP); err != nil {
			return nil, err
		}
	}
	if _, ok := raw["udp"]; ok {
		cfg.UDP = &udp.UDPTransportCfg{}
		if err := decodeSection(raw, "udp", cfg.UDP); err != nil {
			return nil, err
		}
	}

	if p, ok := raw["plugin"]; ok {
		pm, ok := p.(map[string]any)
		if !ok {
			return nil, errors.New("plugin section must be a mapping")
		}
		cfg.Plugin = pm
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeSection fills target from the named top-level section. An absent
// section leaves the target's defaults untouched.
func decodeSection(raw map[string]any, name string, target any) error {
	section, ok := raw[name]
	if !ok {
		return nil
	}
	m, ok := section.(map[string]any)
	if !ok {
		return fmt.Errorf("section %q must be a mapping", name)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: levelHook,
		Result:     target,
	})
	if err != nil {
		return fmt.Errorf("section %q: %w", name, err)
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("section %q: %w", name, err)
	}
	return nil
}

// levelHook lets YAML spell log levels by name ("info") instead of by
// numeric value.
func levelHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeOf(log.Level(0)) {
		return log.ParseLevel(data.(string)), nil
	}
	return data, nil
}

func defaultLogCfg() *log.LogCfg {
	return &log.LogCfg{
		LogLevel:        log.InfoLevel,
		FileSplitMB:     512,
		ConsoleAppender: true,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Log.LogLevel == 0 {
		cfg.Log.LogLevel = log.InfoLevel
	}
	if cfg.Log.FileSplitMB == 0 {
		cfg.Log.FileSplitMB = 512
	}
	if cfg.Dispatcher.RecvRateLimit == 0 {
		cfg.Dispatcher.RecvRateLimit = 10000
	}
	if cfg.Dispatcher.TokenBurst == 0 {
		cfg.Dispatcher.TokenBurst = 1000
	}
	if cfg.TCP != nil {
		if cfg.TCP.IdleTimeout == 0 {
			cfg.TCP.IdleTimeout = 300
		}
		if cfg.TCP.SendChannelSize == 0 {
			cfg.TCP.SendChannelSize = 256
		}
		if cfg.TCP.MaxBufferSize == 0 {
			cfg.TCP.MaxBufferSize = 1 << 16
		}
	}
	if cfg.UDP != nil && cfg.UDP.MaxDatagramSize == 0 {
		cfg.UDP.MaxDatagramSize = 1 << 16
	}
}

func validate(cfg *Config) error {
	if err := cfg.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := cfg.Wire.Validate(); err != nil {
		return fmt.Errorf("wirelog: %w", err)
	}
	if err := cfg.Dispatcher.Validate(); err != nil {
		return fmt.Errorf("dispatcher: %w", err)
	}
	if cfg.TCP != nil {
		if err := cfg.TCP.Validate(); err != nil {
			return fmt.Errorf("tcp: %w", err)
		}
	}
	if cfg.UDP != nil {
		if err := cfg.UDP.Validate(); err != nil {
			return fmt.Errorf("udp: %w", err)
		}
	}
	return nil
}
