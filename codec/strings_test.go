package codec

import (
	"bytes"
	"strings"
	"testing"
)

func TestFixedBytesNullHandling(t *testing.T) {
	tests := []struct {
		name string
		c    Codec
		in   []byte
		want []byte
	}{
		{"trailing nulls", Bytes(FixedLen(5)), []byte("foo\x00\x00"), []byte("foo")},
		{"null then junk", Bytes(FixedLen(5)), []byte("foo\x00!"), []byte("foo")},
		{"full string keeps everything", Bytes(FixedLen(5), FullString()), []byte("foo\x00!"), []byte("foo\x00!")},
		{"no null at all", Bytes(FixedLen(3)), []byte("bar"), []byte("bar")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.c.Parse(NewBytesSource(tt.in), nil)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !bytes.Equal(v.([]byte), tt.want) {
				t.Errorf("Parse(%q) = %q, want %q", tt.in, v, tt.want)
			}
		})
	}
}

func TestBytesPadAndTruncate(t *testing.T) {
	ws := captureWarnings(t)

	b, err := Bytes(FixedLen(5)).Serialize("foo", nil)
	if err != nil || !bytes.Equal(b, []byte("foo\x00\x00")) {
		t.Fatalf("short input = %q, %v; want null padding", b, err)
	}

	b, err = Bytes(FixedLen(3)).Serialize("abcd", nil)
	if err != nil || !bytes.Equal(b, []byte("abc")) {
		t.Fatalf("long input = %q, %v; want truncation", b, err)
	}
	if !hasWarning(*ws, WarnLengthMismatch) {
		t.Errorf("truncation must warn, got %v", *ws)
	}
}

func TestAutosizedTail(t *testing.T) {
	hello := NewSchema("Hello").
		Field("state", Bytes(FixedLen(2))).
		Field("name", Bytes(AutoLen())).
		MustBuild()

	rec, err := hello.ParseBytes([]byte("VAEli\x00"))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if got := rec.Get("state"); !bytes.Equal(got.([]byte), []byte("VA")) {
		t.Errorf("state = %q", got)
	}
	if got := rec.Get("name"); !bytes.Equal(got.([]byte), []byte("Eli")) {
		t.Errorf("name = %q", got)
	}

	b, err := rec.Serialize()
	if err != nil || !bytes.Equal(b, []byte("VAEli\x00")) {
		t.Fatalf("re-serialize = %q, %v; want original frame", b, err)
	}
	if n, err := rec.SizeOf(); err != nil || n != 6 {
		t.Errorf("SizeOf = %d, %v; want 6", n, err)
	}

	// Without a value the terminator position is unknowable.
	if _, err := Bytes(AutoLen()).SizeOf(nil, nil); err == nil {
		t.Error("autosized SizeOf without a value must fail")
	}
}

func TestBytesCoercion(t *testing.T) {
	tests := []struct {
		in   any
		want []byte
	}{
		{[]byte("raw"), []byte("raw")},
		{"text", []byte("text")},
		{42, []byte("42")},
		{int64(-7), []byte("-7")},
		{uint64(9), []byte("9")},
	}
	c := Bytes(FixedLen(8))
	for _, tt := range tests {
		v, err := c.Convert(tt.in)
		if err != nil {
			t.Errorf("Convert(%v): %v", tt.in, err)
			continue
		}
		if !bytes.Equal(v.([]byte), tt.want) {
			t.Errorf("Convert(%v) = %q, want %q", tt.in, v, tt.want)
		}
	}
	if _, err := c.Convert(3.5); err == nil {
		t.Error("floats must not coerce to byte strings")
	}
}

func TestTextLatin1RoundTrip(t *testing.T) {
	c := Text(FixedLen(4), "latin1")

	b, err := c.Serialize("café", nil)
	if err != nil || !bytes.Equal(b, []byte("caf\xe9")) {
		t.Fatalf("Serialize = %q, %v", b, err)
	}
	v, err := c.Parse(NewBytesSource([]byte("caf\xe9")), nil)
	if err != nil || v != "café" {
		t.Fatalf("Parse = %q, %v", v, err)
	}
	if f, err := c.Format(nil, nil); err != nil || f != "4s" {
		t.Errorf("Format = %q, %v; want %q", f, err, "4s")
	}
}

func TestTextEncodePolicies(t *testing.T) {
	if _, err := Text(FixedLen(4), "latin1").Serialize("あhi", nil); err == nil {
		t.Error("strict policy must fail on an unrepresentable rune")
	}

	b, err := Text(FixedLen(2), "latin1", EncErrors(EncIgnore)).Serialize("あhi", nil)
	if err != nil || !bytes.Equal(b, []byte("hi")) {
		t.Errorf("ignore policy = %q, %v; want unrepresentable rune dropped", b, err)
	}

	b, err = Text(FixedLen(3), "latin1", EncErrors(EncReplace)).Serialize("あhi", nil)
	if err != nil {
		t.Fatalf("replace policy: %v", err)
	}
	if len(b) != 3 || !bytes.HasSuffix(b, []byte("hi")) {
		t.Errorf("replace policy = %q, want a substitute followed by %q", b, "hi")
	}
}

func TestTextDecodePolicies(t *testing.T) {
	bad := []byte("\xffA")

	if _, err := Text(FixedLen(2), "utf-8").Parse(NewBytesSource(bad), nil); err == nil {
		t.Error("strict policy must fail on undecodable octets")
	}

	v, err := Text(FixedLen(2), "utf-8", EncErrors(EncIgnore)).Parse(NewBytesSource(bad), nil)
	if err != nil || v != "A" {
		t.Errorf("ignore policy = %q, %v; want bad octet dropped", v, err)
	}

	v, err = Text(FixedLen(2), "utf-8", EncErrors(EncReplace)).Parse(NewBytesSource(bad), nil)
	if err != nil || !strings.HasSuffix(v.(string), "A") || !strings.ContainsRune(v.(string), '�') {
		t.Errorf("replace policy = %q, %v; want replacement rune kept", v, err)
	}
}

func TestTextAutosized(t *testing.T) {
	c := Text(AutoLen(), "utf-8")

	b, err := c.Serialize("hi", nil)
	if err != nil || !bytes.Equal(b, []byte("hi\x00")) {
		t.Fatalf("Serialize = %q, %v", b, err)
	}
	v, err := c.Parse(NewBytesSource(b), nil)
	if err != nil || v != "hi" {
		t.Fatalf("Parse = %q, %v", v, err)
	}
	if n, err := c.SizeOf("hi", nil); err != nil || n != 3 {
		t.Errorf("SizeOf = %d, %v; want 3", n, err)
	}
	if _, err := c.SizeOf(nil, nil); err == nil {
		t.Error("autosized SizeOf without a value must fail")
	}
}

func TestUnknownEncodingRejected(t *testing.T) {
	_, err := NewSchema("Bad").
		Field("t", Text(FixedLen(2), "no-such-encoding")).
		Build()
	if err == nil {
		t.Fatal("unknown encoding must be a schema error")
	}
	if _, ok := err.(*SchemaError); !ok {
		t.Errorf("error type %T, want *SchemaError", err)
	}
}

func TestUnsafeAutosizeWarns(t *testing.T) {
	ws := captureWarnings(t)
	_, err := NewSchema("Wide").
		Field("t", Text(AutoLen(), "utf-16be")).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !hasWarning(*ws, WarnUnsafeAutosize) {
		t.Errorf("null-embedding encoding under autosized framing must warn, got %v", *ws)
	}
}
