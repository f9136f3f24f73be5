package codec

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// ByteOrder selects the framing convention for multi-byte primitives. The
// recognised values mirror the classic byte-packing mini-language.
type ByteOrder byte

const (
	// OrderNetwork is network byte order (big-endian), the process default.
	OrderNetwork ByteOrder = '!'
	// OrderBig is explicit big-endian.
	OrderBig ByteOrder = '>'
	// OrderLittle is explicit little-endian.
	OrderLittle ByteOrder = '<'
	// OrderNativeStd is host byte order with standard sizes.
	OrderNativeStd ByteOrder = '='
	// OrderNative is host byte order with native alignment. Integer widths
	// are fixed regardless of the selected order, so on the wire this is
	// identical to OrderNativeStd.
	OrderNative ByteOrder = '@'
)

var defaultOrder atomic.Uint32

func init() {
	defaultOrder.Store(uint32(OrderNetwork))
}

// SetDefaultByteOrder changes the process-wide byte order used by schemas
// without a per-schema override. It is intended to be called once at
// startup, before any codec work begins.
func SetDefaultByteOrder(o ByteOrder) error {
	if !o.valid() {
		return fmt.Errorf("unrecognised byte order %q", string(o))
	}
	defaultOrder.Store(uint32(o))
	return nil
}

// DefaultByteOrder returns the current process-wide byte order.
func DefaultByteOrder() ByteOrder {
	return ByteOrder(defaultOrder.Load())
}

func (o ByteOrder) valid() bool {
	switch o {
	case OrderNetwork, OrderBig, OrderLittle, OrderNativeStd, OrderNative:
		return true
	}
	return false
}

// endian maps the order character onto an encoding/binary implementation.
func (o ByteOrder) endian() binary.ByteOrder {
	switch o {
	case OrderLittle:
		return binary.LittleEndian
	case OrderNativeStd, OrderNative:
		return binary.NativeEndian
	default:
		return binary.BigEndian
	}
}

var nativeIsLittle = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// little reports whether the order lays out the least significant octet
// first on the wire.
func (o ByteOrder) little() bool {
	switch o {
	case OrderLittle:
		return true
	case OrderNativeStd, OrderNative:
		return nativeIsLittle
	default:
		return false
	}
}
