package log

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// FrameLogger is the concrete Logger: level gate, call-site capture, a
// LogEvent pool, and a fan-out to appenders. The logging path takes no
// locks; the level threshold is atomic so it can be changed at runtime.
//
//	logger := NewLogger(&LogCfg{
//	    LogLevel:        InfoLevel,
//	    ConsoleAppender: true,
//	    FileAppender:    true,
//	    LogPath:         "/var/log/framelib.log",
//	})
//	logger.Info().Str("listener", addr).Int("schemas", n).Msg("parser ready")
type FrameLogger struct {
	appenders         []LogAppender
	minLevel          atomic.Int32
	callerSkip        int
	eventPool         *sync.Pool
	callerCache       sync.Map
	enabledCallerInfo bool
}

// NewLogger builds a logger from cfg; nil selects the package defaults.
// File and console appenders are attached per the configuration flags.
func NewLogger(cfg *LogCfg) *FrameLogger {
	if cfg == nil {
		cfg = getDefaultCfg()
	}

	logger := &FrameLogger{
		callerSkip:        cfg.CallerSkip,
		enabledCallerInfo: cfg.EnabledCallerInfo,
	}
	logger.minLevel.Store(int32(cfg.LogLevel))

	logger.eventPool = &sync.Pool{
		New: func() any {
			return newEvent(logger)
		},
	}

	if cfg.FileAppender {
		logger.AddAppender(NewFileAppender(cfg))
	}

	if cfg.ConsoleAppender {
		logger.AddAppender(NewConsoleAppender())
	}

	return logger
}

// SetLevel changes the minimum level at runtime.
func (x *FrameLogger) SetLevel(level Level) {
	x.minLevel.Store(int32(level))
}

func (x *FrameLogger) checkLevel(level Level) bool {
	return Level(x.minLevel.Load()) <= level
}

// AddAppender registers another output destination. Not safe to call
// concurrently with logging; wire appenders up before use.
func (x *FrameLogger) AddAppender(appender LogAppender) {
	x.appenders = append(x.appenders, appender)
}

// GetAppender returns the registered appenders.
func (x *FrameLogger) GetAppender() []LogAppender {
	return x.appenders
}

// Refresh flushes every appender.
func (x *FrameLogger) Refresh() {
	for _, appender := range x.appenders {
		appender.Refresh()
	}
}

// Close flushes and closes every appender.
func (x *FrameLogger) Close() {
	for _, appender := range x.appenders {
		appender.Close()
	}
}

func (x *FrameLogger) newEvent() *LogEvent {
	e := x.eventPool.Get().(*LogEvent)
	e.Reset()
	return e
}

// OnEventEnd writes the finished line to every appender and returns the
// event to the pool. A fatal line panics after it is written.
func (x *FrameLogger) OnEventEnd(e *LogEvent) {
	for _, appender := range x.appenders {
		appender.Write(e.buf.Bytes())
	}

	if e.level == FatalLevel {
		x.Refresh()
		panic("fatal log event")
	}

	x.eventPool.Put(e)
}

// Trace starts a trace-level event, or returns nil when filtered.
func (x *FrameLogger) Trace() *LogEvent {
	return x.log(TraceLevel)
}

// Debug starts a debug-level event, or returns nil when filtered.
func (x *FrameLogger) Debug() *LogEvent {
	return x.log(DebugLevel)
}

// Info starts an info-level event, or returns nil when filtered.
func (x *FrameLogger) Info() *LogEvent {
	return x.log(InfoLevel)
}

// Warn starts a warn-level event, or returns nil when filtered.
func (x *FrameLogger) Warn() *LogEvent {
	return x.log(WarnLevel)
}

// Error starts an error-level event, or returns nil when filtered.
func (x *FrameLogger) Error() *LogEvent {
	return x.log(ErrorLevel)
}

// Fatal starts a fatal-level event. Completing it panics.
func (x *FrameLogger) Fatal() *LogEvent {
	return x.log(FatalLevel)
}

// getCallerInfo resolves the logging call site, caching by program
// counter since the same site logs repeatedly. The file path is trimmed
// to its last two segments.
func (x *FrameLogger) getCallerInfo() *callerInfo {
	pc, file, line, ok := runtime.Caller(3 + x.callerSkip)
	if !ok {
		return _UnknownCallerInfo
	}

	if cached, found := x.callerCache.Load(pc); found {
		return cached.(*callerInfo)
	}

	funcName := runtime.FuncForPC(pc).Name()
	var function string
	if dotIdx := strings.LastIndexByte(funcName, '.'); dotIdx != -1 {
		function = funcName[dotIdx+1:]
	} else {
		function = funcName
	}

	if len(file) > 0 {
		lastSlash := strings.LastIndexByte(file, '/')
		if lastSlash > 0 {
			secondLastSlash := strings.LastIndexByte(file[:lastSlash], '/')
			if secondLastSlash >= 0 {
				file = file[secondLastSlash+1:]
			}
		}
	}

	c := newCallerInfo(file, function, line)
	x.callerCache.Store(pc, c)

	return c
}

// log gates on the level and stamps the common fields. Returns nil when
// the level is filtered, which short-circuits the whole fluent chain.
func (x *FrameLogger) log(level Level) *LogEvent {
	if !x.checkLevel(level) {
		return nil
	}

	e := x.newEvent()
	e.level = level

	t := time.Now()
	e.Time("time", &t)
	e.Str("level", level.String())

	if x.enabledCallerInfo {
		e.Str("caller", x.getCallerInfo().String())
	}

	return e
}
