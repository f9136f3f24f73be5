// Package transport defines the contracts shared by the concrete transport
// implementations and the layer above them. A transport owns the sockets,
// frames the byte stream with the discriminating parser and hands every
// framed unit upward through a TransportDelivery.
package transport

import (
	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/log"
)

// Transport is the lifecycle interface every transport implements.
type Transport interface {
	// Start brings the transport online. The option bundle supplies the
	// receiver, the parser and the wire logger. Start is non-blocking; the
	// serve loops run on their own goroutines.
	Start(opt TransportOption) error

	// Stop shuts the transport down, closing the listener or socket and
	// every active connection.
	Stop() error
}

// TransportOption carries the dependencies a transport needs to serve.
type TransportOption struct {
	// Receiver accepts every framed unit the transport reads. Typically the
	// dispatcher.
	Receiver DispatcherReceiver

	// Parser frames the inbound byte stream or datagrams.
	Parser *codec.MsgParser

	// Wire receives the hex, raw, struct, error and stack traffic streams.
	// Each connection logs through its own correlation view.
	Wire *log.WireLogger
}

// SendBackFunc writes a reply to the origin of a delivery. A *codec.Record
// is serialized through its schema and mirrored to the struct stream; a
// []byte is written verbatim.
type SendBackFunc func(v any) error

// TransportDelivery carries one framed unit from a transport to the
// receiver, bundled with the means to reply to it.
type TransportDelivery struct {
	// Result is the parser outcome: a decoded record, an unrecognised raw
	// payload, or an empty or incomplete frame.
	Result codec.ParseResult

	// CorrID identifies the connection or datagram exchange the frame
	// arrived on. The same id tags the wire log streams.
	CorrID string

	// Wire is the correlation view the frame was logged through.
	Wire *log.WireLogger

	// SendBack replies on the delivering connection or to the datagram's
	// source address.
	SendBack SendBackFunc
}

// DispatcherReceiver is the contract for the component above the transport
// layer. The transport's responsibility ends after OnRecvTransportPkg
// returns.
type DispatcherReceiver interface {
	OnRecvTransportPkg(td *TransportDelivery) error
}
