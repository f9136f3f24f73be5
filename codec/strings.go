package codec

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// bytesCodec frames raw octet strings. Fixed and sibling-referenced lengths
// reserve exactly n octets, null-padding short input and truncating long
// input with a warning; autosized strings are framed by a single 0x00
// terminator instead.
type bytesCodec struct {
	opts   fieldOptions
	length Length
}

// Bytes returns a byte-string codec with the given length specifier.
func Bytes(l Length, opts ...Option) Codec {
	c := &bytesCodec{length: l}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

func (c *bytesCodec) options() *fieldOptions { return &c.opts }

func (c *bytesCodec) Zero() any { return []byte{} }

func (c *bytesCodec) Convert(v any) (any, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case int:
		return []byte(strconv.FormatInt(int64(b), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(b, 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(b, 10)), nil
	}
	return nil, &CoerceError{Value: v, Reason: fmt.Sprintf("cannot convert %T to byte string", v)}
}

func (c *bytesCodec) Parse(src *Source, rec *Record) (any, error) {
	if c.length.Mode() == LenAuto {
		return src.ReadUntilNull()
	}
	n, err := c.length.resolve(rec, "")
	if err != nil {
		return nil, err
	}
	b, err := src.ReadFull(n)
	if err != nil {
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	if !c.opts.fullString {
		b = stripAtNull(b)
	}
	return b, nil
}

func (c *bytesCodec) Serialize(v any, rec *Record) ([]byte, error) {
	cv, err := c.Convert(v)
	if err != nil {
		return nil, err
	}
	return frameBytes(cv.([]byte), c.length, rec)
}

func (c *bytesCodec) SizeOf(v any, rec *Record) (int, error) {
	return frameSize(v, c.length, rec, c.Convert)
}

func (c *bytesCodec) Format(v any, rec *Record) (string, error) {
	n, err := c.SizeOf(v, rec)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n) + "s", nil
}

// textCodec frames decoded text. The value type is a string; on the wire it
// is the text encoded under a named encoding and framed exactly like a byte
// string of the same length mode.
type textCodec struct {
	opts       fieldOptions
	length     Length
	name       string
	enc        encoding.Encoding
	resolveErr error
}

// Text returns a text-string codec using the named encoding, resolved
// through the IANA/WHATWG index. An unknown encoding name surfaces as a
// SchemaError when the codec is bound into a schema.
func Text(l Length, encodingName string, opts ...Option) Codec {
	c := &textCodec{length: l, name: encodingName}
	for _, o := range opts {
		o(&c.opts)
	}
	c.enc, c.resolveErr = htmlindex.Get(encodingName)
	return c
}

func (c *textCodec) options() *fieldOptions { return &c.opts }

func (c *textCodec) Zero() any { return "" }

func (c *textCodec) Convert(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return c.decode(s)
	}
	return nil, &CoerceError{Value: v, Reason: fmt.Sprintf("cannot convert %T to text", v)}
}

func (c *textCodec) Parse(src *Source, rec *Record) (any, error) {
	var framed []byte
	if c.length.Mode() == LenAuto {
		b, err := src.ReadUntilNull()
		if err != nil {
			return nil, err
		}
		framed = b
	} else {
		n, err := c.length.resolve(rec, "")
		if err != nil {
			return nil, err
		}
		b, err := src.ReadFull(n)
		if err != nil {
			return nil, err
		}
		if !c.opts.fullString {
			b = stripAtNull(b)
		}
		framed = b
	}
	return c.decode(framed)
}

func (c *textCodec) Serialize(v any, rec *Record) ([]byte, error) {
	cv, err := c.Convert(v)
	if err != nil {
		return nil, err
	}
	raw, err := c.encode(cv.(string))
	if err != nil {
		return nil, err
	}
	return frameBytes(raw, c.length, rec)
}

func (c *textCodec) SizeOf(v any, rec *Record) (int, error) {
	conv := func(v any) (any, error) {
		cv, err := c.Convert(v)
		if err != nil {
			return nil, err
		}
		return c.encode(cv.(string))
	}
	return frameSize(v, c.length, rec, conv)
}

func (c *textCodec) Format(v any, rec *Record) (string, error) {
	n, err := c.SizeOf(v, rec)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(n) + "s", nil
}

// encode maps text to octets under the codec's encoding and error policy.
func (c *textCodec) encode(s string) ([]byte, error) {
	if c.resolveErr != nil {
		return nil, &CoerceError{Value: s, Reason: "unknown encoding " + c.name}
	}
	switch c.opts.encErrors {
	case EncReplace:
		b, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).Bytes([]byte(s))
		if err != nil {
			return nil, &CoerceError{Value: s, Reason: err.Error()}
		}
		return b, nil
	case EncIgnore:
		var out []byte
		for _, r := range s {
			b, err := c.enc.NewEncoder().Bytes([]byte(string(r)))
			if err == nil {
				out = append(out, b...)
			}
		}
		return out, nil
	default:
		b, err := c.enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, &CoerceError{Value: s, Reason: err.Error()}
		}
		return b, nil
	}
}

// decode maps framed octets back to text. Undecodable octets follow the
// error policy; the decoder marks them with the Unicode replacement rune.
func (c *textCodec) decode(b []byte) (string, error) {
	if c.resolveErr != nil {
		return "", &CoerceError{Value: b, Reason: "unknown encoding " + c.name}
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", &CoerceError{Value: b, Reason: err.Error()}
	}
	s := string(out)
	switch c.opts.encErrors {
	case EncIgnore:
		return strings.ReplaceAll(s, string(utf8.RuneError), ""), nil
	case EncReplace:
		return s, nil
	default:
		if strings.ContainsRune(s, utf8.RuneError) {
			return "", &CoerceError{Value: b, Reason: "undecodable octets for encoding " + c.name}
		}
		return s, nil
	}
}

// encodingEmbedsNull reports whether the encoding produces 0x00 octets for
// ordinary text, which collides with null-terminator framing.
func (c *textCodec) encodingEmbedsNull() bool {
	if c.resolveErr != nil {
		return false
	}
	b, err := c.enc.NewEncoder().Bytes([]byte("A"))
	if err != nil {
		return false
	}
	return bytes.IndexByte(b, 0) >= 0
}

// stripAtNull truncates at the first 0x00 octet, discarding it and
// everything after.
func stripAtNull(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// frameBytes fits raw octets into the framed width: exact fit passes
// through, short input is null-padded, long input is truncated with a
// LengthMismatch warning, and autosized input gains a terminator.
func frameBytes(raw []byte, l Length, rec *Record) ([]byte, error) {
	if l.Mode() == LenAuto {
		out := make([]byte, 0, len(raw)+1)
		out = append(out, raw...)
		return append(out, 0), nil
	}
	n, err := l.resolve(rec, "")
	if err != nil {
		return nil, err
	}
	switch {
	case len(raw) == n:
		return raw, nil
	case len(raw) < n:
		out := make([]byte, n)
		copy(out, raw)
		return out, nil
	default:
		emitWarning(WarnLengthMismatch, recSchemaName(rec), "", "string of %d octets truncated to %d", len(raw), n)
		return raw[:n], nil
	}
}

// frameSize computes the framed width without encoding: the resolved
// length for counted frames, the value's width plus the terminator for
// autosized frames.
func frameSize(v any, l Length, rec *Record, conv func(any) (any, error)) (int, error) {
	if l.Mode() != LenAuto {
		return l.resolve(rec, "")
	}
	if v == nil {
		return 0, &VariableSizeError{Schema: recSchemaName(rec)}
	}
	cv, err := conv(v)
	if err != nil {
		return 0, err
	}
	switch b := cv.(type) {
	case []byte:
		return len(b) + 1, nil
	case string:
		return len(b) + 1, nil
	}
	return 0, &VariableSizeError{Schema: recSchemaName(rec)}
}

func recSchemaName(rec *Record) string {
	if rec == nil {
		return ""
	}
	return rec.schema.name
}
