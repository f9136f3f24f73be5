package framelib

import (
	"testing"

	"github.com/dvellum/framelib/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithDefaults(t *testing.T) {
	app, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, app)

	assert.NotNil(t, app.Logger)
	assert.NotNil(t, app.PluginManager)
	assert.NotNil(t, app.Config)

	assert.NotPanics(t, app.Stop)
}

func TestNewWithMetricsPlugin(t *testing.T) {
	cfg, err := config.Parse([]byte(`
plugin:
  metrics:
    prometheus:
      tag: default
      listenAddr: 127.0.0.1:0
`))
	require.NoError(t, err)

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Stop()

	p, err := app.PluginManager.GetDefaultPlugin("metrics")
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewRejectsUnknownPlugin(t *testing.T) {
	cfg, err := config.Parse([]byte(`
plugin:
  metrics:
    statsd: {}
`))
	require.NoError(t, err)

	_, err = New(cfg)
	assert.Error(t, err)
}
