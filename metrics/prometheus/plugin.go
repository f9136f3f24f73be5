package prometheus

import (
	"fmt"

	"github.com/dvellum/framelib/plugin"
)

type factory struct{}

// NewFactory returns the plugin factory for the Prometheus reporter.
func NewFactory() plugin.Factory {
	return &factory{}
}

// Type returns the plugin type.
func (f *factory) Type() plugin.Type {
	return plugin.Metrics
}

// Name returns the name of the plugin implementation.
func (f *factory) Name() string {
	return "prometheus"
}

// ConfigType returns an empty struct that represents the plugin's configuration.
// This struct will be populated by the manager using mapstructure.
func (f *factory) ConfigType() any {
	return &ReporterConfig{}
}

// Setup initializes a reporter instance based on the configuration.
func (f *factory) Setup(cfgAny any) (plugin.Plugin, error) {
	cfg, ok := cfgAny.(*ReporterConfig)
	if !ok {
		return nil, fmt.Errorf("prometheus setup: unexpected config type %T", cfgAny)
	}
	return NewReporter(cfg)
}

// Destroy stops the reporter instance.
func (f *factory) Destroy(p plugin.Plugin) {
	if r, ok := p.(*Reporter); ok {
		r.Stop()
	}
}
