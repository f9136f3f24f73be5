package codec

import (
	"bytes"
	"testing"
)

func buildPointVectorParser(t *testing.T) (point, vector *Schema, p *MsgParser) {
	t.Helper()
	point = NewSchema("Point").
		Field("code", I16(Always(1))).
		Field("x", I32()).
		Field("y", I32()).
		MustBuild()
	vector = NewSchema("Vector").
		Field("code", I16(Always(2))).
		Field("x", F32()).
		Field("y", F32()).
		MustBuild()
	p, err := NewMsgParser(point, vector)
	if err != nil {
		t.Fatalf("NewMsgParser: %v", err)
	}
	return point, vector, p
}

func TestDiscriminationOutcomes(t *testing.T) {
	_, vector, p := buildPointVectorParser(t)
	if p.PrefixWidth() != 2 {
		t.Fatalf("PrefixWidth = %d, want 2", p.PrefixWidth())
	}

	res, err := p.ParseBytes([]byte{0, 2, 0x42, 0x84, 0, 0, 0x41, 0xd8, 0, 0})
	if err != nil || res.Status != ParsedRecord {
		t.Fatalf("vector frame: %+v, %v", res, err)
	}
	if res.Record.Schema() != vector {
		t.Errorf("matched %s, want Vector", res.Record.Schema().Name())
	}
	if got := res.Record.Get("x"); got != float64(66) {
		t.Errorf("x = %v, want 66", got)
	}

	res, err = p.ParseBytes([]byte{0, 1, 0, 0, 0, 5, 0, 0, 0, 6})
	if err != nil || res.Status != ParsedRecord || res.Record.Schema().Name() != "Point" {
		t.Fatalf("point frame: %+v, %v", res, err)
	}
	if got := res.Record.Get("y"); got != int64(6) {
		t.Errorf("y = %v, want 6", got)
	}

	res, err = p.ParseBytes([]byte{0, 9})
	if err != nil || res.Status != ParsedRaw {
		t.Fatalf("unknown prefix: %+v, %v", res, err)
	}
	if !bytes.Equal(res.Raw, []byte{0, 9}) {
		t.Errorf("Raw = % x, want the prefix octets", res.Raw)
	}

	res, err = p.ParseBytes([]byte{0, 9, 'A', 'B'})
	if err != nil || res.Status != ParsedRaw || !bytes.Equal(res.Raw, []byte{0, 9, 'A', 'B'}) {
		t.Fatalf("unknown prefix with tail: %+v, %v", res, err)
	}

	res, err = p.ParseBytes(nil)
	if err != nil || res.Status != ParsedEmpty {
		t.Fatalf("empty input: %+v, %v", res, err)
	}

	res, err = p.ParseBytes([]byte{0})
	if err != nil || res.Status != ParsedEmpty {
		t.Fatalf("partial prefix: %+v, %v", res, err)
	}

	res, err = p.ParseBytes([]byte{0, 1, 1, 2, 3})
	if err != nil || res.Status != ParsedIncomplete {
		t.Fatalf("truncated frame: %+v, %v", res, err)
	}
}

func TestSequentialFrames(t *testing.T) {
	point, vector, p := buildPointVectorParser(t)

	var stream []byte
	pb, _ := point.MustNew(1, 5, 6).Serialize()
	vb, _ := vector.MustNew(2, 66.0, 27.0).Serialize()
	stream = append(stream, pb...)
	stream = append(stream, vb...)

	src := NewBytesSource(stream)

	res, err := p.Parse(src)
	if err != nil || res.Status != ParsedRecord || res.Record.Schema() != point {
		t.Fatalf("first frame: %+v, %v", res, err)
	}
	res, err = p.Parse(src)
	if err != nil || res.Status != ParsedRecord || res.Record.Schema() != vector {
		t.Fatalf("second frame: %+v, %v", res, err)
	}
	res, err = p.Parse(src)
	if err != nil || res.Status != ParsedEmpty {
		t.Fatalf("drained source: %+v, %v", res, err)
	}
}

func TestParserRegistration(t *testing.T) {
	point, _, _ := buildPointVectorParser(t)

	if _, err := NewMsgParser(); err == nil {
		t.Error("a parser with no schemas must be rejected")
	}

	plain := NewSchema("Plain").Field("x", I32()).MustBuild()
	if _, err := NewMsgParser(plain); err == nil {
		t.Error("a schema without a prefix constant must be rejected")
	}

	narrow := NewSchema("Narrow").
		Field("code", U8(Always(3))).
		Field("x", I32()).
		MustBuild()
	if _, err := NewMsgParser(point, narrow); err == nil {
		t.Error("prefixes of different widths must be rejected")
	}

	clash := NewSchema("Clash").
		Field("code", I16(Always(1))).
		Field("z", U8()).
		MustBuild()
	if _, err := NewMsgParser(point, clash); err == nil {
		t.Error("two schemas sharing one prefix value must be rejected")
	}
}

func TestParseStatusString(t *testing.T) {
	tests := []struct {
		s    ParseStatus
		want string
	}{
		{ParsedRecord, "record"},
		{ParsedRaw, "raw"},
		{ParsedEmpty, "empty"},
		{ParsedIncomplete, "incomplete"},
		{ParseStatus(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
