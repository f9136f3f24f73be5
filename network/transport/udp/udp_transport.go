// Package udp implements the datagram transport. Each datagram is one
// frame: it is parsed whole, logged under its own correlation id and the
// reply, if any, goes back to the datagram's source address.
package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
	"github.com/dvellum/framelib/network/transport"
	"github.com/segmentio/ksuid"
)

// UDPTransportCfg holds the configuration for a UDPTransport.
type UDPTransportCfg struct {
	Tag             string `mapstructure:"tag"`             // Identifier for this transport instance.
	Addr            string `mapstructure:"addr"`            // Listen address, e.g. "host:port".
	MaxDatagramSize int    `mapstructure:"maxDatagramSize"` // Largest datagram accepted, in bytes.
}

// GetName returns the configuration key for UDPTransportCfg.
func (c *UDPTransportCfg) GetName() string {
	return "udp_transport"
}

// Validate checks the UDPTransportCfg parameters.
func (c *UDPTransportCfg) Validate() error {
	if c.Addr == "" {
		return errors.New("Addr cannot be empty")
	}
	if c.MaxDatagramSize <= 0 {
		return errors.New("MaxDatagramSize must be positive")
	}
	return nil
}

// UDPTransport serves a single datagram socket. It implements
// transport.Transport.
type UDPTransport struct {
	*UDPTransportCfg
	conn       *net.UDPConn
	receiver   transport.DispatcherReceiver
	parser     *codec.MsgParser
	wire       *log.WireLogger
	listenAddr net.Addr
	cancel     context.CancelFunc
}

// NewUDPTransport creates a transport with the given configuration.
func NewUDPTransport(cfg *UDPTransportCfg) (*UDPTransport, error) {
	if cfg == nil {
		return nil, errors.New("UDPTransportCfg is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid UDPTransportCfg: %w", err)
	}
	return &UDPTransport{UDPTransportCfg: cfg}, nil
}

// Start binds the socket and launches the read loop.
func (t *UDPTransport) Start(opt transport.TransportOption) error {
	if opt.Receiver == nil {
		return errors.New("udp transport: receiver is required")
	}
	if opt.Parser == nil {
		return errors.New("udp transport: parser is required")
	}
	if opt.Wire == nil {
		return errors.New("udp transport: wire logger is required")
	}
	t.receiver = opt.Receiver
	t.parser = opt.Parser
	t.wire = opt.Wire

	udpAddr, err := net.ResolveUDPAddr("udp", t.Addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address %q: %w", t.Addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", t.Addr, err)
	}
	t.conn = conn
	t.listenAddr = conn.LocalAddr()

	metrics.IncrCounterWithGroup(metrics.NameTransportStartTotal, metrics.GroupNet, 1)

	var ctx context.Context
	ctx, t.cancel = context.WithCancel(context.Background())
	go t.serve(ctx)
	log.Info().Str("address", t.listenAddr.String()).Msg("UDP transport listening")
	return nil
}

// Stop cancels the transport context; the read loop closes the socket.
func (t *UDPTransport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// ListenAddr returns the bound address. Useful when the configured address
// requested an ephemeral port.
func (t *UDPTransport) ListenAddr() net.Addr {
	return t.listenAddr
}

// serve reads datagrams until the context is cancelled. The read deadline
// is refreshed every second so cancellation is observed promptly.
func (t *UDPTransport) serve(ctx context.Context) {
	defer func() { _ = t.conn.Close() }()

	buf := make([]byte, t.MaxDatagramSize)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("UDP transport stopping read loop")
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				log.Error().Err(err).Msg("Failed to read datagram")
			}
			return
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		t.handle(datagram, addr)
	}
}

// handle parses one datagram and hands the result to the receiver. Handler
// panics are captured on the stack stream.
func (t *UDPTransport) handle(datagram []byte, addr *net.UDPAddr) {
	id := ksuid.New().String()
	wire := t.wire.WithCorrelation(id)

	defer func() {
		if r := recover(); r != nil {
			wire.LogError("handler panic: %v", r)
			wire.LogStack()
			metrics.IncrCounterWithGroup(metrics.NameHandlerPanicTotal, metrics.GroupNet, 1)
		}
	}()

	metrics.IncrCounterWithGroup(metrics.NameDatagramTotal, metrics.GroupNet, 1)

	res, err := t.parser.ParseBytes(datagram)
	if err != nil {
		wire.LogBinary(datagram, log.DirReceived)
		wire.LogError("parse: %v", err)
		metrics.IncrCounterWithGroup(metrics.NameParseErrorTotal, metrics.GroupNet, 1)
		return
	}

	switch res.Status {
	case codec.ParsedEmpty:
		return
	case codec.ParsedIncomplete:
		wire.LogBinary(datagram, log.DirReceived)
		wire.LogError("incomplete datagram from %s", addr)
		metrics.IncrCounterWithGroup(metrics.NameIncompleteFrameTotal, metrics.GroupNet, 1)
		return
	case codec.ParsedRaw:
		wire.LogBinary(res.Raw, log.DirReceived)
	case codec.ParsedRecord:
		wire.LogBinary(datagram, log.DirReceived)
		wire.LogStruct(res.Record, log.DirReceived)
	}

	delivery := &transport.TransportDelivery{
		Result: res,
		CorrID: id,
		Wire:   wire,
		SendBack: func(v any) error {
			_, err := wire.LogAndWrite(&udpReplyWriter{conn: t.conn, addr: addr}, v)
			return err
		},
	}
	if err := t.receiver.OnRecvTransportPkg(delivery); err != nil {
		wire.LogError("dispatch: %v", err)
		log.Error().Err(err).Str("remote", addr.String()).Msg("Error dispatching datagram")
	}
}

// udpReplyWriter addresses writes back to a datagram's source.
type udpReplyWriter struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func (w *udpReplyWriter) Write(p []byte) (int, error) {
	return w.conn.WriteToUDP(p, w.addr)
}
