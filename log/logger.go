package log

// Logger hands out level-gated events and receives them back for output.
type Logger interface {
	Trace() *LogEvent
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger *FrameLogger

func init() {
	// The package works before Initialize is called; callers that want a
	// specific configuration install it at startup.
	_defaultLogger = NewLogger(getDefaultCfg())
}

// Initialize configures the default logger. A nil cfg keeps the built-in
// defaults. Call once at application startup.
func Initialize(cfg *LogCfg) error {
	if cfg == nil {
		cfg = getDefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	SetDefaultLogger(NewLogger(cfg))
	return nil
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh flushes all appenders of the default logger.
func Refresh() {
	_defaultLogger.Refresh()
}

// Close flushes and closes the default logger's appenders. Call at
// shutdown so buffered async lines reach disk.
func Close() {
	_defaultLogger.Close()
}

// SetDefaultLogger replaces the logger behind the package-level functions.
func SetDefaultLogger(logger *FrameLogger) {
	_defaultLogger = logger
}

// DefaultLogger returns the logger behind the package-level functions.
func DefaultLogger() *FrameLogger {
	return _defaultLogger
}

// Trace starts a trace-level event on the default logger.
func Trace() *LogEvent {
	return _defaultLogger.Trace()
}

// Debug starts a debug-level event on the default logger.
func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

// Info starts an info-level event on the default logger.
func Info() *LogEvent {
	return _defaultLogger.Info()
}

// Warn starts a warn-level event on the default logger.
func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

// Error starts an error-level event on the default logger.
func Error() *LogEvent {
	return _defaultLogger.Error()
}

// Fatal starts a fatal-level event on the default logger. Completing it
// panics after the line is written.
func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
