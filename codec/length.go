package codec

import "fmt"

// LengthMode tags the three ways a string or array resolves its length.
type LengthMode int

const (
	// LenFixed is a literal octet or element count.
	LenFixed LengthMode = iota
	// LenFromField reads the length from a previously declared integer
	// sibling field of the enclosing record.
	LenFromField
	// LenAuto means null-terminated for strings, read-until-EOF for
	// arrays of autosized strings.
	LenAuto
)

// Length is the length specifier attached to string and array codecs.
type Length struct {
	mode  LengthMode
	n     int
	field string
}

// FixedLen declares a literal length of n octets or elements, n >= 0.
func FixedLen(n int) Length {
	return Length{mode: LenFixed, n: n}
}

// FieldLen declares that the length is the current integer value of the
// named sibling field. The sibling must be declared before the referring
// field; forward references are rejected at schema construction.
func FieldLen(name string) Length {
	return Length{mode: LenFromField, field: name}
}

// AutoLen declares null-terminated framing: decode reads octets until a
// 0x00 terminator and consumes it, encode appends one.
func AutoLen() Length {
	return Length{mode: LenAuto}
}

// Mode returns the length's mode tag.
func (l Length) Mode() LengthMode { return l.mode }

// FieldName returns the referenced sibling for LenFromField lengths.
func (l Length) FieldName() string { return l.field }

// resolve computes the concrete count for fixed and sibling-referenced
// lengths. LenAuto lengths have no count and must not reach here.
func (l Length) resolve(rec *Record, forField string) (int, error) {
	switch l.mode {
	case LenFixed:
		return l.n, nil
	case LenFromField:
		if rec == nil {
			return 0, &VariableSizeError{Field: forField}
		}
		v, ok := rec.lookup(l.field)
		if !ok {
			return 0, &SchemaError{
				Schema: rec.schema.name,
				Reason: fmt.Sprintf("length field %q for %q has no value", l.field, forField),
			}
		}
		n, err := intValue(v)
		if err != nil {
			return 0, &CoerceError{Field: l.field, Value: v, Reason: "length field is not an integer"}
		}
		if n < 0 {
			return 0, &CoerceError{Field: l.field, Value: v, Reason: "negative length"}
		}
		return int(n), nil
	default:
		return 0, &VariableSizeError{Field: forField}
	}
}

// intValue extracts a signed count from the canonical integer forms.
func intValue(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case int:
		return int64(n), nil
	}
	return 0, fmt.Errorf("not an integer: %T", v)
}
