// Package framelib assembles the framework components from an application
// configuration: logger, plugin manager and metrics reporters.
package framelib

import (
	"fmt"

	"github.com/dvellum/framelib/config"
	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
	"github.com/dvellum/framelib/metrics/prometheus"
	"github.com/dvellum/framelib/plugin"
)

// Framelib is the core application struct, holding the major framework
// components and the configuration they were built from.
type Framelib struct {
	Logger        *log.FrameLogger
	PluginManager *plugin.Manager
	Config        *config.Config
}

// New creates a Framelib application instance from the given configuration.
// A nil cfg uses the built-in defaults. The logger becomes the process
// default, plugins are set up from the plugin section and every metrics
// plugin is installed as a reporter.
func New(cfg *config.Config) (*Framelib, error) {
	if cfg == nil {
		parsed, err := config.Parse(nil)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if err := log.Initialize(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	pm := plugin.NewManager()
	pm.RegisterFactory(prometheus.NewFactory())
	if err := pm.SetupPlugins(cfg.Plugin); err != nil {
		return nil, fmt.Errorf("failed to setup plugins: %w", err)
	}

	installReporters(pm)

	f := &Framelib{
		Logger:        log.DefaultLogger(),
		PluginManager: pm,
		Config:        cfg,
	}
	log.Info().Msg("framelib application initialized")
	return f, nil
}

// Stop gracefully shuts down the application: reporters are detached,
// plugins destroyed and the logger flushed.
func (f *Framelib) Stop() {
	log.Info().Msg("framelib application shutting down")
	metrics.SetMetricsReporters(nil)
	f.PluginManager.DestroyPlugins()
	f.Logger.Refresh()
}

// installReporters wires the default metrics plugin, when one is
// configured, into the metrics facade.
func installReporters(pm *plugin.Manager) {
	p, err := pm.GetDefaultPlugin(plugin.Metrics)
	if err != nil {
		return
	}
	if r, ok := p.(metrics.Reporter); ok {
		metrics.SetMetricsReporters([]metrics.Reporter{r})
	}
}
