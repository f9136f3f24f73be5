package codec

import (
	"fmt"
	"strings"
)

type schemaField struct {
	name  string
	codec Codec
}

// Schema is an immutable, ordered, named collection of field codecs
// representing one message type. Schemas are built by a Builder, are safe
// to share across goroutines once built, and expose parse, serialize and
// size queries plus the metadata the discriminating parser relies on.
type Schema struct {
	name      string
	fields    []schemaField
	index     map[string]int
	fixed     bool
	fixedSize int

	order    ByteOrder
	hasOrder bool

	prefixCodec Codec
	prefixVal   any
	prefixWidth int
	hasPrefix   bool
}

// Name returns the schema's record name.
func (s *Schema) Name() string { return s.name }

// FieldNames returns the field names in wire order.
func (s *Schema) FieldNames() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.name
	}
	return out
}

// FieldCodec returns the codec bound to the named field.
func (s *Schema) FieldCodec(name string) (Codec, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.fields[i].codec, true
}

// Fixed reports whether every instance of the schema has the same wire
// width.
func (s *Schema) Fixed() bool { return s.fixed }

// Order returns the schema's effective byte order: its own override when
// one was declared on the builder, else the process-wide default.
func (s *Schema) Order() ByteOrder {
	if s.hasOrder {
		return s.order
	}
	return DefaultByteOrder()
}

// PrefixConstant returns the discriminator prefix, if the schema has one:
// the constant's serialized octets under the schema's byte order and their
// width. A prefix exists iff the first field is an integer with a declared
// constant.
func (s *Schema) PrefixConstant() (value []byte, width int, ok bool) {
	if !s.hasPrefix {
		return nil, 0, false
	}
	rec := &Record{schema: s}
	b, err := s.prefixCodec.Serialize(s.prefixVal, rec)
	if err != nil {
		return nil, 0, false
	}
	return b, s.prefixWidth, true
}

// SizeOf returns the wire width in octets. For fixed schemas rec may be
// nil; variable schemas need an instance and fail with VariableSizeError
// without one.
func (s *Schema) SizeOf(rec *Record) (int, error) {
	if rec == nil {
		if !s.fixed {
			return 0, &VariableSizeError{Schema: s.name}
		}
		return s.fixedSize, nil
	}
	total := 0
	for _, f := range s.fields {
		n, err := f.codec.SizeOf(rec.Get(f.name), rec)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Format assembles the wire-format descriptor: the byte-order character
// followed by each field's descriptor fragment in order. Variable-length
// fields resolve their widths from rec; pass nil only for fixed schemas.
func (s *Schema) Format(rec *Record) (string, error) {
	body, err := s.formatBody(rec)
	if err != nil {
		return "", err
	}
	return string(s.Order()) + body, nil
}

func (s *Schema) formatBody(rec *Record) (string, error) {
	var sb strings.Builder
	for _, f := range s.fields {
		var v any
		if rec != nil {
			v = rec.Get(f.name)
		}
		frag, err := f.codec.Format(v, rec)
		if err != nil {
			return "", err
		}
		sb.WriteString(frag)
	}
	return sb.String(), nil
}

// Parse decodes one record from the source, field by field in wire order.
// Sibling-referenced lengths consult the fields already decoded; constant
// fields are validated with a ConstantMismatch warning on difference. A
// source exhausted mid-record surfaces as a ShortReadError naming the
// field that was being decoded.
func (s *Schema) Parse(src *Source) (*Record, error) {
	rec := &Record{schema: s, values: make(map[string]any, len(s.fields))}
	for _, f := range s.fields {
		v, err := f.codec.Parse(src, rec)
		if err != nil {
			if sr, ok := err.(*ShortReadError); ok && sr.Field == "" {
				sr.Field = f.name
			}
			return nil, err
		}
		checkConstant(f.codec, v, s.name, f.name)
		rec.values[f.name] = v
	}
	return rec, nil
}

// ParseBytes decodes one record from an in-memory buffer.
func (s *Schema) ParseBytes(b []byte) (*Record, error) {
	return s.Parse(NewBytesSource(b))
}

// Serialize encodes the record field by field in wire order, validating
// constant fields on the way out.
func (s *Schema) Serialize(rec *Record) ([]byte, error) {
	if rec == nil || rec.schema != s {
		return nil, &CoerceError{Value: rec, Reason: "record does not belong to schema " + s.name}
	}
	var out []byte
	for _, f := range s.fields {
		v, ok := rec.lookup(f.name)
		if !ok {
			v = defaultValue(f.codec)
		}
		checkConstant(f.codec, v, s.name, f.name)
		b, err := f.codec.Serialize(v, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// New constructs a record instance with values given positionally in wire
// order. Unspecified fields fall back to the field constant, then the
// declared default, then the codec's zero. Every value, explicit or
// defaulted, passes through coercion.
func (s *Schema) New(vals ...any) (*Record, error) {
	if len(vals) > len(s.fields) {
		return nil, &CoerceError{
			Value:  vals,
			Reason: fmt.Sprintf("%d values for %d fields of %s", len(vals), len(s.fields), s.name),
		}
	}
	rec := &Record{schema: s, values: make(map[string]any, len(s.fields))}
	for i, f := range s.fields {
		var v any
		if i < len(vals) {
			v = vals[i]
		} else {
			v = defaultValue(f.codec)
		}
		if err := rec.Set(f.name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// NewNamed constructs a record instance from a name-to-value map, with the
// same fallback and coercion rules as New. Unknown names are rejected.
func (s *Schema) NewNamed(vals map[string]any) (*Record, error) {
	for name := range vals {
		if _, ok := s.index[name]; !ok {
			return nil, &CoerceError{Value: name, Reason: "no such field in " + s.name}
		}
	}
	rec := &Record{schema: s, values: make(map[string]any, len(s.fields))}
	for _, f := range s.fields {
		v, ok := vals[f.name]
		if !ok {
			v = defaultValue(f.codec)
		}
		if err := rec.Set(f.name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// MustNew is New for statically known values; it panics on coercion
// failure.
func (s *Schema) MustNew(vals ...any) *Record {
	rec, err := s.New(vals...)
	if err != nil {
		panic(err)
	}
	return rec
}

// newDefault builds a fully defaulted instance; a field whose declared
// default cannot coerce gets the codec's zero value instead.
func (s *Schema) newDefault() *Record {
	rec := &Record{schema: s, values: make(map[string]any, len(s.fields))}
	for _, f := range s.fields {
		v, err := f.codec.Convert(defaultValue(f.codec))
		if err != nil {
			v = f.codec.Zero()
		}
		rec.values[f.name] = v
	}
	return rec
}
