package codec

import (
	"bytes"
	"testing"
)

func TestIntRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		c    Codec
		in   any
		wire []byte
		want any
	}{
		{"i8", I8(), -5, []byte{0xfb}, int64(-5)},
		{"u8", U8(), 200, []byte{0xc8}, uint64(200)},
		{"i16", I16(), -2, []byte{0xff, 0xfe}, int64(-2)},
		{"u16", U16(), 65535, []byte{0xff, 0xff}, uint64(65535)},
		{"i32", I32(), -100000, []byte{0xff, 0xfe, 0x79, 0x60}, int64(-100000)},
		{"u32", U32(), uint64(4000000000), []byte{0xee, 0x6b, 0x28, 0x00}, uint64(4000000000)},
		{"i64", I64(), int64(-1), []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, int64(-1)},
		{"u64", U64(), uint64(1) << 63, []byte{0x80, 0, 0, 0, 0, 0, 0, 0}, uint64(1) << 63},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.c.Serialize(tt.in, nil)
			if err != nil {
				t.Fatalf("Serialize(%v): %v", tt.in, err)
			}
			if !bytes.Equal(b, tt.wire) {
				t.Fatalf("Serialize(%v) = % x, want % x", tt.in, b, tt.wire)
			}
			got, err := tt.c.Parse(NewBytesSource(tt.wire), nil)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestIntRange(t *testing.T) {
	tests := []struct {
		name string
		c    Codec
		v    any
	}{
		{"u8 overflow", U8(), 256},
		{"i8 overflow", I8(), 128},
		{"i8 underflow", I8(), -129},
		{"i16 overflow", I16(), 40000},
		{"u16 overflow", U16(), 1 << 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if b, err := tt.c.Serialize(tt.v, nil); err == nil {
				t.Errorf("Serialize(%v) = % x, want out-of-range error", tt.v, b)
			}
		})
	}

	if _, err := U16().Convert(-1); err == nil {
		t.Error("negative value for unsigned field must fail coercion")
	}
}

func TestIntCoercion(t *testing.T) {
	ws := captureWarnings(t)

	if v, err := I32().Convert("42"); err != nil || v != int64(42) {
		t.Errorf("Convert(\"42\") = %v, %v", v, err)
	}
	if v, err := I32().Convert(6.25); err != nil || v != int64(6) {
		t.Errorf("Convert(6.25) = %v, %v; want 6", v, err)
	}
	if !hasWarning(*ws, WarnPrecisionLoss) {
		t.Errorf("float to integer coercion must warn, got %v", *ws)
	}
	if v, err := U8().Convert([]byte("A")); err != nil || v != uint64(65) {
		t.Errorf("Convert(single octet) = %v, %v; want 65", v, err)
	}
	if _, err := I32().Convert([]byte("AB")); err == nil {
		t.Error("multi-octet byte string must not coerce to integer")
	}
	if _, err := I32().Convert("nope"); err == nil {
		t.Error("non-numeric text must not coerce to integer")
	}
	if _, err := I32().Convert(struct{}{}); err == nil {
		t.Error("struct must not coerce to integer")
	}
}

func TestFloatRoundTrip(t *testing.T) {
	b, err := F32().Serialize(66.0, nil)
	if err != nil || !bytes.Equal(b, []byte{0x42, 0x84, 0x00, 0x00}) {
		t.Fatalf("F32 Serialize(66) = % x, %v", b, err)
	}
	v, err := F32().Parse(NewBytesSource(b), nil)
	if err != nil || v != float64(66) {
		t.Fatalf("F32 Parse = %v, %v", v, err)
	}

	b, err = F64().Serialize(27.0, nil)
	if err != nil || !bytes.Equal(b, []byte{0x40, 0x3b, 0, 0, 0, 0, 0, 0}) {
		t.Fatalf("F64 Serialize(27) = % x, %v", b, err)
	}
	v, err = F64().Parse(NewBytesSource(b), nil)
	if err != nil || v != float64(27) {
		t.Fatalf("F64 Parse = %v, %v", v, err)
	}
}

func TestFloatCoercion(t *testing.T) {
	if v, err := F64().Convert("2.5"); err != nil || v != 2.5 {
		t.Errorf("Convert(\"2.5\") = %v, %v", v, err)
	}
	if v, err := F64().Convert(3); err != nil || v != float64(3) {
		t.Errorf("Convert(3) = %v, %v", v, err)
	}
	if _, err := F64().Convert("x"); err == nil {
		t.Error("non-numeric text must not coerce to float")
	}
	if _, err := F32().Convert([]byte{1}); err == nil {
		t.Error("byte strings must not coerce to float")
	}
}

func TestDefaultByteOrderSwitch(t *testing.T) {
	if err := SetDefaultByteOrder(OrderLittle); err != nil {
		t.Fatalf("SetDefaultByteOrder: %v", err)
	}
	t.Cleanup(func() { SetDefaultByteOrder(OrderNetwork) })

	b, err := I32().Serialize(5, nil)
	if err != nil || !bytes.Equal(b, []byte{0x05, 0x00, 0x00, 0x00}) {
		t.Fatalf("Serialize under little default = % x, %v", b, err)
	}
	v, err := I32().Parse(NewBytesSource(b), nil)
	if err != nil || v != int64(5) {
		t.Fatalf("Parse under little default = %v, %v", v, err)
	}

	if err := SetDefaultByteOrder(ByteOrder('z')); err == nil {
		t.Error("unrecognised byte order must be rejected")
	}
	if DefaultByteOrder() != OrderLittle {
		t.Error("a rejected order must leave the default unchanged")
	}
}

func TestShortReadNamesField(t *testing.T) {
	point := NewSchema("Point").Field("x", I32()).Field("y", I32()).MustBuild()
	_, err := point.ParseBytes([]byte{0, 0, 0, 5, 0, 0})
	if err == nil {
		t.Fatal("truncated input must fail")
	}
	sr, ok := err.(*ShortReadError)
	if !ok {
		t.Fatalf("error type %T, want *ShortReadError", err)
	}
	if sr.Field != "y" || sr.Want != 4 || sr.Got != 2 {
		t.Errorf("ShortReadError = %+v, want field y, want 4, got 2", sr)
	}
}
