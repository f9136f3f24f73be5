package log

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/dvellum/framelib/utils/hexdump"
)

// Wire stream suffixes. Each stream is its own rotating file so traffic
// captures, decoded structures and failures can be tailed independently.
const (
	StreamHex    = "hex"
	StreamRaw    = "raw"
	StreamStruct = "struct"
	StreamError  = "error"
	StreamStack  = "stack"
)

var wireStreams = []string{StreamHex, StreamRaw, StreamStruct, StreamError, StreamStack}

// Direction tags a logged buffer as inbound or outbound.
type Direction string

const (
	DirReceived Direction = "received"
	DirSending  Direction = "sending"
)

// WireCfg configures a WireLogger.
type WireCfg struct {
	// Prefix is the stem of the stream file names: <prefix>.<stream>.log.
	Prefix string `mapstructure:"prefix"`

	// LogDir is the directory holding the stream files. Empty means the
	// working directory.
	LogDir string `mapstructure:"dir"`

	// AlsoPrint echoes every stream line to stdout.
	AlsoPrint bool `mapstructure:"alsoPrint"`

	// SplitMB rotates each stream file past this size.
	SplitMB int `mapstructure:"splitMB"`
}

// Validate checks ranges and applies the default prefix.
func (cfg *WireCfg) Validate() error {
	if cfg.Prefix == "" {
		cfg.Prefix = "wire"
	}
	if cfg.SplitMB < 0 {
		return fmt.Errorf("wire log split size must be non-negative, got %dMB", cfg.SplitMB)
	}
	if cfg.SplitMB == 0 {
		cfg.SplitMB = 1
	}
	return nil
}

// WireSerializable is a decoded message that can render itself and encode
// back to wire form. LogAndWrite accepts these alongside plain buffers.
type WireSerializable interface {
	String() string
	Serialize() ([]byte, error)
}

// WireLogger captures traffic on five streams: hex holds octet tables,
// raw holds quoted literals, struct holds decoded record renderings,
// error holds failure messages and stack holds handler panic traces.
// Every line carries the logger's correlation id so one connection's
// traffic can be grepped across streams.
type WireLogger struct {
	prefix    string
	corrID    string
	alsoPrint bool
	console   *ConsoleAppender
	streams   map[string]*FileAppender
}

// NewWireLogger opens the five stream files under cfg. A nil cfg uses the
// defaults.
func NewWireLogger(cfg *WireCfg) (*WireLogger, error) {
	if cfg == nil {
		cfg = &WireCfg{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w := &WireLogger{
		prefix:    cfg.Prefix,
		alsoPrint: cfg.AlsoPrint,
		streams:   make(map[string]*FileAppender, len(wireStreams)),
	}
	if cfg.AlsoPrint {
		w.console = NewConsoleAppender()
	}
	for _, stream := range wireStreams {
		name := cfg.Prefix + "." + stream + ".log"
		w.streams[stream] = NewFileAppender(&LogCfg{
			LogPath:     filepath.Join(cfg.LogDir, name),
			FileSplitMB: cfg.SplitMB,
		})
	}
	return w, nil
}

// WithCorrelation returns a view of the logger whose lines are tagged
// with the given id. The underlying streams are shared; transports hand
// each connection its own view.
func (w *WireLogger) WithCorrelation(id string) *WireLogger {
	c := *w
	c.corrID = id
	return &c
}

// CorrelationID returns the id lines are tagged with.
func (w *WireLogger) CorrelationID() string {
	return w.corrID
}

// LogBinary writes the buffer to the hex stream as an octet table and to
// the raw stream as a quoted literal.
func (w *WireLogger) LogBinary(data []byte, dir Direction) {
	w.log(StreamHex, string(dir)+"\n"+hexdump.Dump(data))
	w.log(StreamRaw, string(dir)+" "+strconv.Quote(string(data)))
}

// LogStruct writes the decoded message's rendering to the struct stream.
func (w *WireLogger) LogStruct(inst fmt.Stringer, dir Direction) {
	w.log(StreamStruct, string(dir)+" "+inst.String())
}

// LogError writes a formatted message to the error stream.
func (w *WireLogger) LogError(format string, args ...any) {
	w.log(StreamError, fmt.Sprintf(format, args...))
}

// LogStack writes the calling goroutine's stack to the stack stream.
// Called from recover blocks around application handlers.
func (w *WireLogger) LogStack() {
	w.log(StreamStack, string(debug.Stack()))
}

// LogAndWrite logs the outbound message and writes its wire form to w.
// A WireSerializable is logged to the struct stream and serialized; a
// []byte goes out as is. Anything else is an error.
func (w *WireLogger) LogAndWrite(dst io.Writer, data any) (int, error) {
	var buf []byte
	switch v := data.(type) {
	case WireSerializable:
		w.LogStruct(v, DirSending)
		b, err := v.Serialize()
		if err != nil {
			w.LogError("serialize for send: %v", err)
			return 0, err
		}
		buf = b
	case []byte:
		buf = v
	default:
		err := fmt.Errorf("cannot write %T to the wire", data)
		w.LogError("%v", err)
		return 0, err
	}
	w.LogBinary(buf, DirSending)
	return dst.Write(buf)
}

// Refresh flushes every stream.
func (w *WireLogger) Refresh() {
	for _, a := range w.streams {
		a.Refresh()
	}
}

// Close flushes and closes every stream.
func (w *WireLogger) Close() {
	for _, a := range w.streams {
		a.Close()
	}
}

func (w *WireLogger) log(stream, message string) {
	a, ok := w.streams[stream]
	if !ok {
		return
	}
	line := make([]byte, 0, len(message)+48)
	line = time.Now().AppendFormat(line, "2006-01-02 15:04:05.000")
	if w.corrID != "" {
		line = append(line, " ["...)
		line = append(line, w.corrID...)
		line = append(line, ']')
	}
	line = append(line, ' ')
	line = append(line, message...)
	line = append(line, '\n')
	a.Write(line)
	if w.console != nil {
		w.console.Write(line)
	}
}
