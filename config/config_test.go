package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dvellum/framelib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFull(t *testing.T) {
	data := []byte(`
log:
  level: warn
  consoleAppender: true
  fileAppender: true
  path: /tmp/app.log
  splitMB: 64
wirelog:
  prefix: echo
  dir: /tmp/wire
  splitMB: 8
dispatcher:
  recvRateLimit: 500
  tokenBurst: 50
  nameFilter: [point]
tcp:
  addr: 127.0.0.1:9000
  idleTimeout: 60
  sendChannelSize: 32
  maxBufferSize: 8192
udp:
  addr: 127.0.0.1:9001
  maxDatagramSize: 4096
plugin:
  metrics:
    prometheus:
      listenAddr: 127.0.0.1:0
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, log.WarnLevel, cfg.Log.LogLevel)
	assert.Equal(t, "/tmp/app.log", cfg.Log.LogPath)
	assert.Equal(t, 64, cfg.Log.FileSplitMB)

	assert.Equal(t, "echo", cfg.Wire.Prefix)
	assert.Equal(t, "/tmp/wire", cfg.Wire.LogDir)

	assert.Equal(t, 500, cfg.Dispatcher.RecvRateLimit)
	assert.Equal(t, []string{"point"}, cfg.Dispatcher.NameFilter)

	require.NotNil(t, cfg.TCP)
	assert.Equal(t, "127.0.0.1:9000", cfg.TCP.Addr)
	assert.Equal(t, uint32(60), cfg.TCP.IdleTimeout)

	require.NotNil(t, cfg.UDP)
	assert.Equal(t, 4096, cfg.UDP.MaxDatagramSize)

	require.Contains(t, cfg.Plugin, "metrics")
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, log.InfoLevel, cfg.Log.LogLevel)
	assert.True(t, cfg.Log.ConsoleAppender)
	assert.Equal(t, 512, cfg.Log.FileSplitMB)
	assert.Equal(t, "wire", cfg.Wire.Prefix)
	assert.Equal(t, 10000, cfg.Dispatcher.RecvRateLimit)
	assert.Equal(t, 1000, cfg.Dispatcher.TokenBurst)
	assert.Nil(t, cfg.TCP)
	assert.Nil(t, cfg.UDP)
	assert.Nil(t, cfg.Plugin)
}

func TestParseTransportDefaults(t *testing.T) {
	cfg, err := Parse([]byte("tcp:\n  addr: 127.0.0.1:0\nudp:\n  addr: 127.0.0.1:0\n"))
	require.NoError(t, err)

	assert.Equal(t, uint32(300), cfg.TCP.IdleTimeout)
	assert.Equal(t, uint32(256), cfg.TCP.SendChannelSize)
	assert.Equal(t, 1<<16, cfg.TCP.MaxBufferSize)
	assert.Equal(t, 1<<16, cfg.UDP.MaxDatagramSize)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "log: [unclosed"},
		{"section not a mapping", "log: 42"},
		{"plugin not a mapping", "plugin: 42"},
		{"tcp without addr", "tcp:\n  idleTimeout: 5"},
		{"udp without addr", "udp:\n  maxDatagramSize: 1024"},
		{"dispatcher rate too high", "dispatcher:\n  recvRateLimit: 2000000"},
		{"log split too large", "log:\n  splitMB: 4096"},
		{"file appender without path", "log:\n  fileAppender: true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wirelog:\n  prefix: fromfile\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.Wire.Prefix)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
