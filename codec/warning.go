package codec

import (
	"fmt"
	"sync/atomic"

	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
)

// WarningKind classifies non-fatal conditions raised by the codec engine.
// Warnings never abort the operation that raised them.
type WarningKind int

const (
	// WarnConstantMismatch is raised when an observed value differs from a
	// field's declared constant on encode, decode or assignment.
	WarnConstantMismatch WarningKind = iota + 1

	// WarnLengthMismatch is raised when over-length input to a string or
	// array field is truncated to its declared length.
	WarnLengthMismatch

	// WarnPrecisionLoss is raised when a floating point value is coerced
	// into an integer field.
	WarnPrecisionLoss

	// WarnAliasedFieldOrder is raised when two fields of one schema are
	// bound to the same codec instance, making their relative order
	// unspecified.
	WarnAliasedFieldOrder

	// WarnUnsafeAutosize is raised at schema construction when an
	// autosized text field uses an encoding whose output embeds null
	// octets, which collide with the null terminator framing.
	WarnUnsafeAutosize
)

// String returns the canonical name of the warning kind.
func (k WarningKind) String() string {
	switch k {
	case WarnConstantMismatch:
		return "constant_mismatch"
	case WarnLengthMismatch:
		return "length_mismatch"
	case WarnPrecisionLoss:
		return "precision_loss"
	case WarnAliasedFieldOrder:
		return "aliased_field_order"
	case WarnUnsafeAutosize:
		return "unsafe_autosize"
	default:
		return "unknown"
	}
}

// Warning describes one non-fatal codec condition. Schema and Field may be
// empty when the warning is raised outside record context.
type Warning struct {
	Kind   WarningKind
	Schema string
	Field  string
	Detail string
}

func (w Warning) String() string {
	s := w.Kind.String()
	if w.Schema != "" {
		s += " in " + w.Schema
	}
	if w.Field != "" {
		s += "." + w.Field
	}
	if w.Detail != "" {
		s += ": " + w.Detail
	}
	return s
}

// WarningHandler receives every warning raised by the engine. Handlers must
// be safe for concurrent use; parse and serialize may run on many goroutines.
type WarningHandler func(Warning)

var warningHandler atomic.Value // of WarningHandler

func init() {
	warningHandler.Store(WarningHandler(logWarning))
}

// SetWarningHandler replaces the process-wide warning sink. Passing nil
// restores the default handler, which writes a structured WARN log entry.
func SetWarningHandler(h WarningHandler) {
	if h == nil {
		h = logWarning
	}
	warningHandler.Store(h)
}

func logWarning(w Warning) {
	log.Warn().
		Str("kind", w.Kind.String()).
		Str("schema", w.Schema).
		Str("field", w.Field).
		Msg(w.Detail)
}

func emitWarning(kind WarningKind, schema, field, format string, args ...any) {
	metrics.IncrCounterWithDimGroup(metrics.NameWarningTotal, metrics.GroupCodec, 1, metrics.Dimension{
		metrics.DimWarnKind: kind.String(),
	})
	h := warningHandler.Load().(WarningHandler)
	h(Warning{
		Kind:   kind,
		Schema: schema,
		Field:  field,
		Detail: fmt.Sprintf(format, args...),
	})
}
