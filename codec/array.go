package codec

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// arrayCodec is the homogeneous sequence combinator: a length specifier
// over any element codec. Arrays canonicalise to []any with every element
// coerced by the element codec.
type arrayCodec struct {
	opts   fieldOptions
	elem   Codec
	length Length
}

// Array returns an array codec of the given length over elem. Fixed and
// sibling-referenced lengths decode exactly n elements; AutoLen reads
// elements until the source is exhausted and is only meaningful when elem
// is an autosized string.
func Array(l Length, elem Codec, opts ...Option) Codec {
	c := &arrayCodec{elem: elem, length: l}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

func (c *arrayCodec) options() *fieldOptions { return &c.opts }

// Zero autofills a fixed-length array with element defaults, so a default
// record carries a fully populated sequence rather than an empty one.
func (c *arrayCodec) Zero() any {
	if c.length.Mode() != LenFixed {
		return []any{}
	}
	out := make([]any, c.length.n)
	for i := range out {
		out[i] = c.fillValue()
	}
	return out
}

// fillValue is the element used for autofill padding: the array-level
// default when one is declared, else the element codec's own fallback.
func (c *arrayCodec) fillValue() any {
	if c.opts.hasDefault {
		if c.opts.defFn != nil {
			return c.opts.defFn()
		}
		return c.opts.def
	}
	return defaultValue(c.elem)
}

func (c *arrayCodec) Convert(v any) (any, error) {
	if v == nil {
		return nil, &CoerceError{Value: v, Reason: "nil is not a sequence"}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &CoerceError{Value: v, Reason: fmt.Sprintf("%T is not a sequence", v)}
	}
	out := make([]any, rv.Len())
	for i := range out {
		ev, err := c.elem.Convert(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func (c *arrayCodec) Parse(src *Source, rec *Record) (any, error) {
	if c.length.Mode() == LenAuto {
		var out []any
		for {
			ev, err := c.elem.Parse(src, rec)
			if err != nil {
				var sr *ShortReadError
				if errors.As(err, &sr) && sr.Got == 0 {
					return out, nil
				}
				return nil, err
			}
			out = append(out, ev)
		}
	}
	n, err := c.length.resolve(rec, "")
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	for i := 0; i < n; i++ {
		ev, err := c.elem.Parse(src, rec)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

func (c *arrayCodec) Serialize(v any, rec *Record) ([]byte, error) {
	cv, err := c.Convert(v)
	if err != nil {
		return nil, err
	}
	s := cv.([]any)

	if c.length.Mode() != LenAuto {
		n, err := c.length.resolve(rec, "")
		if err != nil {
			return nil, err
		}
		switch {
		case len(s) > n:
			emitWarning(WarnLengthMismatch, recSchemaName(rec), "", "array of %d elements truncated to %d", len(s), n)
			s = s[:n]
		case len(s) < n:
			padded := make([]any, n)
			copy(padded, s)
			for i := len(s); i < n; i++ {
				ev, err := c.elem.Convert(c.fillValue())
				if err != nil {
					return nil, err
				}
				padded[i] = ev
			}
			s = padded
		}
	}

	var out []byte
	for _, ev := range s {
		b, err := c.elem.Serialize(ev, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func (c *arrayCodec) SizeOf(v any, rec *Record) (int, error) {
	if c.length.Mode() == LenFixed && v == nil {
		es, err := c.elem.SizeOf(nil, rec)
		if err != nil {
			return 0, err
		}
		return c.length.n * es, nil
	}
	if v == nil {
		return 0, &VariableSizeError{Schema: recSchemaName(rec)}
	}
	cv, err := c.Convert(v)
	if err != nil {
		return 0, err
	}
	s := cv.([]any)
	if c.length.Mode() != LenAuto {
		n, err := c.length.resolve(rec, "")
		if err != nil {
			return 0, err
		}
		if len(s) != n {
			// Size reflects the framed width, not the unframed input.
			es, err := c.elem.SizeOf(nil, rec)
			if err != nil {
				return 0, &VariableSizeError{Schema: recSchemaName(rec)}
			}
			return n * es, nil
		}
	}
	total := 0
	for _, ev := range s {
		es, err := c.elem.SizeOf(ev, rec)
		if err != nil {
			return 0, err
		}
		total += es
	}
	return total, nil
}

func (c *arrayCodec) Format(v any, rec *Record) (string, error) {
	var elems []any
	if v != nil {
		cv, err := c.Convert(v)
		if err != nil {
			return "", err
		}
		elems = cv.([]any)
	}
	n := len(elems)
	if c.length.Mode() != LenAuto {
		rn, err := c.length.resolve(rec, "")
		if err != nil {
			return "", err
		}
		n = rn
	}
	var sb strings.Builder
	for i := 0; i < n; i++ {
		var ev any
		if i < len(elems) {
			ev = elems[i]
		}
		f, err := c.elem.Format(ev, rec)
		if err != nil {
			return "", err
		}
		sb.WriteString(f)
	}
	return sb.String(), nil
}
