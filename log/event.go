package log

import (
	"bytes"
	"strconv"
	"time"
)

// LogEvent is one structured log line under construction. Field methods
// append directly to the line buffer and return the event for chaining;
// Msg or End completes the line and hands it back to the owning logger.
// A nil event is inert, so disabled levels cost one pointer check per call.
type LogEvent struct {
	buf    *bytes.Buffer
	logger Logger
	level  Level
}

// newEvent builds a fresh event with a pre-grown buffer. The logger's pool
// calls this once per pooled object; afterwards events cycle through Reset.
func newEvent(l Logger) *LogEvent {
	e := &LogEvent{
		logger: l,
		level:  DebugLevel,
	}
	if e.buf == nil {
		e.buf = &bytes.Buffer{}
	}
	if e.buf.Cap() == 0 {
		e.buf.Grow(1024)
	}
	return e
}

// Reset clears residual state so the event can be reused from the pool and
// opens the JSON object for the next line.
func (e *LogEvent) Reset() {
	e.buf.Reset()
	e.level = DebugLevel

	if e.buf.Cap() > 4096 {
		e.buf.Grow(1024)
	}

	AppendBeginMarker(e.buf)
}

// Time appends a timestamp field formatted as YYYY-MM-DD HH:MM:SS.000.
func (e *LogEvent) Time(k string, v *time.Time) *LogEvent {
	if e == nil {
		return nil
	}

	AppendKey(e.buf, k)
	e.buf.WriteByte('"')
	e.buf.Write(v.AppendFormat(nil, "2006-01-02 15:04:05.000"))
	e.buf.WriteByte('"')

	return e
}

// Int appends an int field.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt(e.buf, v)
	return e
}

// Ints appends an int array field.
func (e *LogEvent) Ints(k string, v []int) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInts(e.buf, v)
	return e
}

// Int64 appends an int64 field.
func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInt64(e.buf, v)
	return e
}

// Uint64 appends a uint64 field.
func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendUint64(e.buf, v)
	return e
}

// Float32 appends a float32 field.
func (e *LogEvent) Float32(k string, v float32) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat32(e.buf, v)
	return e
}

// Float64 appends a float64 field.
func (e *LogEvent) Float64(k string, v float64) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendFloat64(e.buf, v)
	return e
}

// Bool appends a bool field.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendBool(e.buf, v)
	return e
}

// Hex appends the octets as a lowercase hex string. The usual way to put
// wire bytes into a log line without tripping the string escaper.
func (e *LogEvent) Hex(k string, v []byte) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendHex(e.buf, v)
	return e
}

// Caller appends the call site as file.function:line.
func (e *LogEvent) Caller(file string, function string, line int) *LogEvent {
	if e == nil {
		return nil
	}

	AppendKey(e.buf, "caller")
	e.buf.WriteByte('"')
	e.buf.WriteString(file)
	e.buf.WriteString(".")
	e.buf.WriteString(function)
	e.buf.WriteByte(':')
	e.buf.WriteString(strconv.Itoa(line))
	e.buf.WriteByte('"')

	return e
}

// Str appends a string field.
func (e *LogEvent) Str(k string, s string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendString(e.buf, s)
	return e
}

// Strs appends a string array field.
func (e *LogEvent) Strs(k string, v []string) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendStrings(e.buf, v)
	return e
}

// Err appends the error under the "error" key; a nil error logs as null.
func (e *LogEvent) Err(v error) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, "error")
	if v != nil {
		AppendString(e.buf, v.Error())
	} else {
		AppendNil(e.buf)
	}
	return e
}

// LogObjectMarshaler lets a value control its own field layout inside a
// log line. Record types with stable diagnostic shapes implement this.
type LogObjectMarshaler interface {
	MarshalLogObj(e *LogEvent)
}

// Obj appends a custom object through its LogObjectMarshaler.
func (e *LogEvent) Obj(k string, v LogObjectMarshaler) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	if v == nil {
		AppendNil(e.buf)
	} else {
		v.MarshalLogObj(e)
	}
	return e
}

// Any appends an arbitrary value through encoding/json. Slower than the
// typed methods; keep it off hot paths.
func (e *LogEvent) Any(k string, v any) *LogEvent {
	if e == nil {
		return nil
	}
	AppendKey(e.buf, k)
	AppendInterface(e.buf, v)
	return e
}

// Msg sets the final message text and emits the line.
func (e *LogEvent) Msg(v string) {
	if e == nil {
		return
	}
	e.Str("msg", v)
	e.End()
}

// End closes the line and hands it to the logger for output. Msg calls it
// implicitly; call it directly when the line needs no message field.
func (e *LogEvent) End() {
	if e == nil {
		return
	}

	AppendEndMarker(e.buf)
	AppendLineBreak(e.buf)

	e.logger.OnEventEnd(e)
}
