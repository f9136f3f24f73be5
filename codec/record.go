package codec

import (
	"fmt"
	"strings"

	"github.com/dvellum/framelib/metrics"
)

// Record is one instance of a schema: a mapping from field name to
// canonical value plus a back-reference to the schema that shapes it.
// Every assignment flows through the field codec's coercion; records are
// plain aggregates and mutation is the caller's responsibility.
type Record struct {
	schema *Schema
	values map[string]any
}

// Schema returns the schema this record belongs to.
func (r *Record) Schema() *Schema { return r.schema }

// Get returns the canonical value of the named field, or nil for an
// unknown name.
func (r *Record) Get(name string) any {
	return r.values[name]
}

// lookup distinguishes a stored nil from an absent field. Used by
// sibling-length resolution while a record is still mid-parse.
func (r *Record) lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set assigns a field value. The value is coerced by the field codec and
// compared against the field constant, if any; a mismatch warns but the
// assignment proceeds.
func (r *Record) Set(name string, v any) error {
	c, ok := r.schema.FieldCodec(name)
	if !ok {
		return &CoerceError{Field: name, Value: v, Reason: "no such field in " + r.schema.name}
	}
	cv, err := c.Convert(v)
	if err != nil {
		if ce, isCoerce := err.(*CoerceError); isCoerce && ce.Field == "" {
			ce.Field = name
		}
		metrics.IncrCounterWithGroup(metrics.NameCoerceErrorTotal, metrics.GroupCodec, 1)
		return err
	}
	checkConstant(c, cv, r.schema.name, name)
	if r.values == nil {
		r.values = make(map[string]any, len(r.schema.fields))
	}
	r.values[name] = cv
	return nil
}

// Serialize encodes the record under its schema.
func (r *Record) Serialize() ([]byte, error) {
	b, err := r.schema.Serialize(r)
	if err == nil {
		metrics.IncrCounterWithGroup(metrics.NameSerializeTotal, metrics.GroupCodec, 1)
	}
	return b, err
}

// SizeOf returns the record's wire width in octets.
func (r *Record) SizeOf() (int, error) {
	return r.schema.SizeOf(r)
}

// Equal compares two records field by field on their canonical values.
// Records of different schemas are never equal.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.schema != o.schema {
		return false
	}
	for _, f := range r.schema.fields {
		if !canonicalEqual(r.values[f.name], o.values[f.name]) {
			return false
		}
	}
	return true
}

// String renders the record as Name(field=value, ...) in wire order.
func (r *Record) String() string {
	var sb strings.Builder
	sb.WriteString(r.schema.name)
	sb.WriteByte('(')
	for i, f := range r.schema.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.name)
		sb.WriteByte('=')
		sb.WriteString(formatValue(r.values[f.name]))
	}
	sb.WriteByte(')')
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "<unset>"
	case []byte:
		return fmt.Sprintf("%q", x)
	case string:
		return fmt.Sprintf("%q", x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Record:
		return x.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// canonicalEqual compares two canonical values structurally.
func canonicalEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && string(av) == string(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !canonicalEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Record:
		bv, ok := b.(*Record)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

// Fields returns the record's values keyed by field name, in a fresh map.
// Handy for diagnostics and structured logging.
func (r *Record) Fields() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
