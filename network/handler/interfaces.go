// Package handler defines the contracts between the transport layer, the
// dispatcher and application message handlers. Keeping the interfaces here
// decouples handler code from the concrete dispatcher implementation and
// breaks the import cycle between the two.
package handler

import (
	"github.com/dvellum/framelib/codec"
)

// Delivery is one inbound message travelling through the dispatch pipeline.
// Exactly one of Record and Raw is populated: Record for frames matched to a
// registered schema, Raw for frames whose discriminator matched nothing.
type Delivery interface {
	// MsgName returns the underscorized schema name for matched frames, or
	// the raw-data label for unrecognised ones. Filters and metrics key on it.
	MsgName() string
	// Record returns the decoded record, or nil for raw deliveries.
	Record() *codec.Record
	// Raw returns the unrecognised payload, or nil for record deliveries.
	Raw() []byte
	// CorrelationID returns the id of the connection or datagram exchange
	// the frame arrived on. The same id tags the wire log streams.
	CorrelationID() string
	// Reply serializes v and writes it back to the frame's origin. A
	// *codec.Record is serialized through its schema; a []byte is written
	// verbatim.
	Reply(v any) error
}

// Func is a per-message handler bound to a schema in the registry. The
// returned value, if non-nil, is sent back to the origin as the reply.
type Func func(d Delivery) (any, error)

// Receiver is the coarse contract for components that accept whole
// deliveries rather than binding per schema. The dispatcher falls back to a
// registered Receiver when no per-message handler matches.
type Receiver interface {
	OnRecvDelivery(d Delivery) error
}

// Layer couples a Receiver with lifecycle management so long-lived handler
// components can be initialized at startup and drained at shutdown.
type Layer interface {
	Receiver

	Init() error
	Shutdown()
}
