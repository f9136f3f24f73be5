// Package codec implements a declarative binary framing engine: record
// schemas are built field by field from primitive, string, array and nested
// record codecs, then drive bidirectional mapping between typed records and
// fixed-byte-order octet streams. A discriminating parser multiplexes
// between schemas that start with a constant integer prefix.
package codec

// Codec pairs the encode and decode operations for one logical field type
// together with its configuration. Codecs are created by the package
// constructors (I8..U64, F32, F64, Bytes, Text, Array, Nested) and bound to
// named fields through a schema Builder. Each field must receive its own
// codec instance; sharing one instance between fields makes their relative
// order unspecified.
type Codec interface {
	// Convert coerces a user-supplied value into the canonical
	// representation stored in record instances. Lossy conversions emit
	// warnings; impossible ones return a CoerceError.
	Convert(v any) (any, error)

	// Parse decodes one value from src. rec is the partially parsed
	// enclosing record; it supplies the byte order and the already
	// decoded sibling fields that variable lengths refer to.
	Parse(src *Source, rec *Record) (any, error)

	// Serialize encodes a canonical value. rec supplies byte order and
	// sibling length fields, as for Parse.
	Serialize(v any, rec *Record) ([]byte, error)

	// SizeOf reports the encoded width of v in octets. Fixed-width codecs
	// ignore both arguments and accept nil; variable-width codecs return
	// a VariableSizeError when v or a required sibling is unavailable.
	SizeOf(v any, rec *Record) (int, error)

	// Format returns this codec's fragment of the wire-format descriptor.
	// Variable-width codecs resolve their length from v and rec and fail
	// with VariableSizeError when they cannot.
	Format(v any, rec *Record) (string, error)

	// Zero returns the codec's natural zero value, used when a record is
	// constructed without a value, constant or default for the field.
	Zero() any

	options() *fieldOptions
}

// fieldOptions is the option surface shared by every codec kind.
type fieldOptions struct {
	def        any
	defFn      func() any
	hasDefault bool
	always     any
	hasAlways  bool
	fullString bool
	encErrors  EncPolicy
}

// Option configures a codec at construction time.
type Option func(*fieldOptions)

// Default sets the value applied when a record is constructed with no
// explicit value for the field. Mutually exclusive with Always.
func Default(v any) Option {
	return func(o *fieldOptions) {
		o.def = v
		o.hasDefault = true
	}
}

// DefaultFunc sets a default that is produced fresh at each record
// construction, for values that must not be shared between instances.
func DefaultFunc(f func() any) Option {
	return func(o *fieldOptions) {
		o.defFn = f
		o.hasDefault = true
	}
}

// Always declares a constant expected value. It acts as a default and
// additionally as a validator: on encode, decode and assignment the actual
// value is compared against the constant and a ConstantMismatch warning is
// emitted on difference. The operation still proceeds.
func Always(v any) Option {
	return func(o *fieldOptions) {
		o.always = v
		o.hasAlways = true
	}
}

// FullString suppresses the null-strip normally applied when decoding fixed
// and sibling-length byte strings, returning the raw framed octets.
func FullString() Option {
	return func(o *fieldOptions) {
		o.fullString = true
	}
}

// EncErrors selects the policy applied when text cannot be represented in
// a text field's encoding. Only meaningful on Text codecs.
func EncErrors(p EncPolicy) Option {
	return func(o *fieldOptions) {
		o.encErrors = p
	}
}

// EncPolicy is the error policy for text encoding and decoding.
type EncPolicy int

const (
	// EncStrict fails the operation with a CoerceError.
	EncStrict EncPolicy = iota
	// EncIgnore silently drops unrepresentable runes or octets.
	EncIgnore
	// EncReplace substitutes the encoding's replacement character.
	EncReplace
)

// defaultValue resolves the construction-time fallback for a field:
// constant first, then default, then the codec's zero.
func defaultValue(c Codec) any {
	o := c.options()
	if o.hasAlways {
		return o.always
	}
	if o.hasDefault {
		if o.defFn != nil {
			return o.defFn()
		}
		return o.def
	}
	return c.Zero()
}

// checkConstant compares a canonical value against the codec's constant,
// if any, and emits a ConstantMismatch warning on difference.
func checkConstant(c Codec, v any, schema, field string) {
	o := c.options()
	if !o.hasAlways {
		return
	}
	want, err := c.Convert(o.always)
	if err != nil {
		return
	}
	if !canonicalEqual(want, v) {
		emitWarning(WarnConstantMismatch, schema, field, "got %v, expected constant %v", v, want)
	}
}
