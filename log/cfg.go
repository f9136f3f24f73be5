package log

import (
	"fmt"
	"path/filepath"
)

// LogCfg configures a logger: destination, level threshold, rotation, and
// the sync/async write mode.
type LogCfg struct {
	// LogPath is the log file path. Parent directories are created as
	// needed.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level written. Lines below it are dropped
	// before any formatting happens.
	LogLevel Level `mapstructure:"level"`

	// FileSplitMB rotates the file when it grows past this many megabytes.
	FileSplitMB int `mapstructure:"splitMB"`

	// FileSplitHour rotates the file daily at this hour (0-23). Zero
	// disables time-based rotation.
	FileSplitHour int `mapstructure:"splitHour"`

	// IsAsync buffers writes through a background goroutine so logging
	// never blocks on disk. Lines can be lost on a crash before flush.
	IsAsync bool `mapstructure:"isAsync"`

	// AsyncCacheSize caps the number of buffered lines in async mode.
	AsyncCacheSize int `mapstructure:"asyncCacheSize"`

	// AsyncWriteMillSec is the async flush interval in milliseconds.
	AsyncWriteMillSec int `mapstructure:"asyncWriteMillSec"`

	// CallerSkip adds stack frames to skip when resolving the call site,
	// for wrappers that log on behalf of their callers.
	CallerSkip int `mapstructure:"callerSkip"`

	// FileAppender enables the rotating file destination.
	FileAppender bool `mapstructure:"fileAppender"`

	// ConsoleAppender enables the stdout destination.
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	// EnabledCallerInfo adds file:line and function to every line.
	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// Validate checks the configuration for ranges and consistency. It also
// normalises the log path.
func (cfg *LogCfg) Validate() error {
	if cfg.LogLevel < TraceLevel || cfg.LogLevel > FatalLevel {
		return fmt.Errorf("invalid log level: %d, must be between %d (Trace) and %d (Fatal)",
			cfg.LogLevel, TraceLevel, FatalLevel)
	}

	if (cfg.FileAppender || cfg.FileSplitMB != 0) && (cfg.FileSplitMB < 1 || cfg.FileSplitMB > 1024) {
		return fmt.Errorf("file split size must be between 1MB and 1024MB, got %dMB", cfg.FileSplitMB)
	}

	if cfg.FileSplitHour < 0 || cfg.FileSplitHour > 23 {
		return fmt.Errorf("file split hour must be between 0 and 23, got %d", cfg.FileSplitHour)
	}

	if cfg.IsAsync && cfg.AsyncCacheSize < 1 {
		return fmt.Errorf("async cache size must be at least 1 when async mode is enabled, got %d", cfg.AsyncCacheSize)
	}

	if cfg.IsAsync && cfg.AsyncWriteMillSec < 10 {
		return fmt.Errorf("async write interval must be at least 10ms, got %dms", cfg.AsyncWriteMillSec)
	}

	if cfg.CallerSkip < 0 {
		return fmt.Errorf("caller skip must be non-negative, got %d", cfg.CallerSkip)
	}

	if cfg.FileAppender && cfg.LogPath == "" {
		return fmt.Errorf("log path cannot be empty when file appender is enabled")
	}
	if cfg.FileAppender {
		cfg.LogPath = filepath.Clean(cfg.LogPath)
	}

	if !cfg.FileAppender && !cfg.ConsoleAppender {
		return fmt.Errorf("at least one appender (file or console) must be enabled")
	}

	return nil
}

var _defaultCfg = &LogCfg{
	LogPath:           "./framelib.log",
	LogLevel:          DebugLevel,
	FileSplitMB:       50,
	FileSplitHour:     0,
	IsAsync:           true,
	AsyncCacheSize:    1024,
	AsyncWriteMillSec: 200,
	CallerSkip:        1,
	FileAppender:      true,
	ConsoleAppender:   true,
	EnabledCallerInfo: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
