// Package tcp implements the stream transport. Each accepted connection
// gets a correlation id, a read goroutine framing the stream with the
// discriminating parser and a write goroutine draining a buffered send
// queue.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
	"github.com/dvellum/framelib/network/transport"
	"github.com/dvellum/framelib/utils/pool"
	"github.com/segmentio/ksuid"
)

// TCPTransportCfg holds the configuration for a TCPTransport.
type TCPTransportCfg struct {
	Tag             string `mapstructure:"tag"`             // Identifier for this transport instance.
	Addr            string `mapstructure:"addr"`            // Listen address, e.g. "host:port".
	IdleTimeout     uint32 `mapstructure:"idleTimeout"`     // Seconds a connection may sit idle before it is closed.
	SendChannelSize uint32 `mapstructure:"sendChannelSize"` // Buffer size of each connection's send queue.
	MaxBufferSize   int    `mapstructure:"maxBufferSize"`   // Socket read/write buffer size in bytes.
}

// GetName returns the configuration key for TCPTransportCfg.
func (c *TCPTransportCfg) GetName() string {
	return "tcp_transport"
}

// Validate checks the TCPTransportCfg parameters.
func (c *TCPTransportCfg) Validate() error {
	if c.Addr == "" {
		return errors.New("Addr cannot be empty")
	}
	if c.MaxBufferSize <= 0 {
		return errors.New("MaxBufferSize must be positive")
	}
	if c.SendChannelSize <= 0 {
		return errors.New("SendChannelSize must be positive")
	}
	if c.IdleTimeout <= 0 {
		return errors.New("IdleTimeout must be positive")
	}
	return nil
}

// TCPTransport listens for stream connections and serves each one with a
// pair of goroutines. It implements transport.Transport.
type TCPTransport struct {
	*TCPTransportCfg
	conns      map[string]*tcpctx
	lock       sync.RWMutex
	receiver   transport.DispatcherReceiver
	parser     *codec.MsgParser
	wire       *log.WireLogger
	listenAddr net.Addr
	cancel     context.CancelFunc
	sendPool   *pool.Pool
}

// NewTCPTransport creates a transport with the given configuration.
func NewTCPTransport(cfg *TCPTransportCfg) (*TCPTransport, error) {
	if cfg == nil {
		return nil, errors.New("TCPTransportCfg is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid TCPTransportCfg: %w", err)
	}
	return &TCPTransport{
		TCPTransportCfg: cfg,
		conns:           make(map[string]*tcpctx),
		sendPool: pool.NewPool("tcp_send", func() any {
			b := make([]byte, 0, cfg.MaxBufferSize)
			return &b
		}),
	}, nil
}

// Start resolves and binds the listen address and launches the accept loop.
func (t *TCPTransport) Start(opt transport.TransportOption) error {
	if opt.Receiver == nil {
		return errors.New("tcp transport: receiver is required")
	}
	if opt.Parser == nil {
		return errors.New("tcp transport: parser is required")
	}
	if opt.Wire == nil {
		return errors.New("tcp transport: wire logger is required")
	}
	t.receiver = opt.Receiver
	t.parser = opt.Parser
	t.wire = opt.Wire

	tcpAddr, err := net.ResolveTCPAddr("tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("failed to resolve TCP address %q: %w", t.Addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", t.Addr, err)
	}
	t.listenAddr = listener.Addr()

	metrics.IncrCounterWithGroup(metrics.NameTransportStartTotal, metrics.GroupNet, 1)

	var ctx context.Context
	ctx, t.cancel = context.WithCancel(context.Background())
	go t.serve(ctx, listener)
	log.Info().Str("address", t.listenAddr.String()).Msg("TCP transport listening")
	return nil
}

// Stop cancels the transport context, closing the listener and every
// active connection.
func (t *TCPTransport) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

// ListenAddr returns the bound address. Useful when the configured address
// requested an ephemeral port.
func (t *TCPTransport) ListenAddr() net.Addr {
	return t.listenAddr
}

// serve accepts connections until the context is cancelled. The accept
// deadline is refreshed every second so cancellation is observed promptly.
func (t *TCPTransport) serve(ctx context.Context, listener *net.TCPListener) {
	defer func() { _ = listener.Close() }()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("TCP transport stopping accept loop")
			t.closeAll()
			return
		default:
		}

		_ = listener.SetDeadline(time.Now().Add(time.Second))
		conn, err := listener.AcceptTCP()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			log.Error().Err(err).Msg("Failed to accept TCP connection")
			return
		}

		if err = conn.SetReadBuffer(t.MaxBufferSize); err != nil {
			log.Error().Err(err).Msg("Failed to set read buffer size")
			_ = conn.Close()
			continue
		}
		if err = conn.SetWriteBuffer(t.MaxBufferSize); err != nil {
			log.Error().Err(err).Msg("Failed to set write buffer size")
			_ = conn.Close()
			continue
		}

		id := ksuid.New().String()
		connCtx, cancel := context.WithCancel(ctx)
		tctx := &tcpctx{
			id:         id,
			ctx:        ctx,
			cancelCtx:  connCtx,
			cancel:     cancel,
			conn:       conn,
			remoteAddr: conn.RemoteAddr(),
			sendCh:     make(chan *[]byte, t.SendChannelSize),
			transport:  t,
			wire:       t.wire.WithCorrelation(id),
		}
		t.addConn(tctx)
		metrics.IncrCounterWithGroup(metrics.NameConnectionTotal, metrics.GroupNet, 1)
		metrics.UpdateGaugeWithGroup(metrics.NameCurrentConnections, metrics.GroupNet, metrics.Value(t.connCount()))
		tctx.serve()
	}
}

// CloseConn closes the connection with the given correlation id.
func (t *TCPTransport) CloseConn(id string) error {
	t.lock.RLock()
	tctx, ok := t.conns[id]
	t.lock.RUnlock()
	if !ok {
		return fmt.Errorf("CloseConn: no connection %q", id)
	}
	tctx.close()
	return nil
}

// Send queues a record or buffer on the connection with the given id.
func (t *TCPTransport) Send(id string, v any) error {
	t.lock.RLock()
	tctx, ok := t.conns[id]
	t.lock.RUnlock()
	if !ok {
		return fmt.Errorf("Send: no connection %q", id)
	}
	return tctx.Send(v)
}

func (t *TCPTransport) closeAll() {
	t.lock.RLock()
	open := make([]*tcpctx, 0, len(t.conns))
	for _, c := range t.conns {
		open = append(open, c)
	}
	t.lock.RUnlock()
	for _, c := range open {
		c.close()
	}
}

func (t *TCPTransport) removeConn(id string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	delete(t.conns, id)
}

func (t *TCPTransport) addConn(c *tcpctx) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.conns[c.id] = c
}

func (t *TCPTransport) connCount() int {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.conns)
}

// tcpctx is the state of one active connection: its correlation id, its
// wire log view and the send queue drained by the write goroutine.
type tcpctx struct {
	id         string
	ctx        context.Context
	cancelCtx  context.Context
	cancel     context.CancelFunc
	conn       net.Conn
	remoteAddr net.Addr
	closeOnce  sync.Once
	sendCh     chan *[]byte
	transport  *TCPTransport
	wire       *log.WireLogger
}

// close shuts the connection down. Safe to call more than once.
func (t *tcpctx) close() {
	t.closeOnce.Do(func() {
		log.Info().Str("conn", t.id).Str("remote", t.remoteAddr.String()).Msg("Closing TCP connection")
		t.transport.removeConn(t.id)
		metrics.IncrCounterWithGroup(metrics.NameConnectionCloseTotal, metrics.GroupNet, 1)
		metrics.UpdateGaugeWithGroup(metrics.NameCurrentConnections, metrics.GroupNet, metrics.Value(t.transport.connCount()))
		t.cancel()
		_ = t.conn.Close()
	})
}

// serve launches the read and write goroutines.
func (t *tcpctx) serve() {
	go t.serveSend()
	go t.serveRecv()
}

// serveRecv frames the stream with the parser and hands each result to the
// receiver. The loop ends when the peer closes, the idle deadline passes or
// the stream is corrupt.
func (t *tcpctx) serveRecv() {
	defer t.close()

	src := codec.NewSource(bufio.NewReader(t.conn))
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.cancelCtx.Done():
			return
		default:
		}

		_ = t.setReadDeadline()
		res, err := t.transport.parser.Parse(src)
		if err != nil {
			t.wire.LogError("parse: %v", err)
			metrics.IncrCounterWithGroup(metrics.NameParseErrorTotal, metrics.GroupNet, 1)
			return
		}

		switch res.Status {
		case codec.ParsedEmpty:
			// Peer closed or sent nothing within the idle window.
			return
		case codec.ParsedIncomplete:
			t.wire.LogError("incomplete frame, closing connection")
			metrics.IncrCounterWithGroup(metrics.NameIncompleteFrameTotal, metrics.GroupNet, 1)
			return
		case codec.ParsedRaw:
			t.wire.LogBinary(res.Raw, log.DirReceived)
		case codec.ParsedRecord:
			if b, serr := res.Record.Serialize(); serr == nil {
				t.wire.LogBinary(b, log.DirReceived)
			}
			t.wire.LogStruct(res.Record, log.DirReceived)
		}

		t.dispatch(res)
	}
}

// dispatch hands one parse result to the receiver. Handler panics are
// captured on the stack stream rather than taking the process down.
func (t *tcpctx) dispatch(res codec.ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			t.wire.LogError("handler panic: %v", r)
			t.wire.LogStack()
			metrics.IncrCounterWithGroup(metrics.NameHandlerPanicTotal, metrics.GroupNet, 1)
		}
	}()

	delivery := &transport.TransportDelivery{
		Result:   res,
		CorrID:   t.id,
		Wire:     t.wire,
		SendBack: t.Send,
	}
	if err := t.transport.receiver.OnRecvTransportPkg(delivery); err != nil {
		t.wire.LogError("dispatch: %v", err)
		log.Error().Err(err).Str("conn", t.id).Msg("Error dispatching frame")
	}
}

// serveSend drains the send queue, serializing all writes to the socket.
func (t *tcpctx) serveSend() {
	defer t.close()
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.cancelCtx.Done():
			return
		case bp := <-t.sendCh:
			_ = t.setWriteDeadline()
			_, err := t.conn.Write(*bp)
			t.transport.sendPool.Put(bp)
			if err != nil {
				log.Error().Err(err).Str("conn", t.id).Msg("Failed to write frame")
				return
			}
		}
	}
}

// Send logs v on the outbound streams and queues its wire form. A full
// queue signals back-pressure and the frame is dropped with an error.
func (t *tcpctx) Send(v any) error {
	_, err := t.wire.LogAndWrite(t, v)
	return err
}

// Write queues one outbound frame. It implements io.Writer so the wire
// logger's write-through path lands here.
func (t *tcpctx) Write(p []byte) (int, error) {
	bp := t.transport.sendPool.Get().(*[]byte)
	*bp = append((*bp)[:0], p...)
	select {
	case t.sendCh <- bp:
		return len(p), nil
	default:
		t.transport.sendPool.Put(bp)
		log.Warn().Str("conn", t.id).Msg("Send queue full, dropping frame")
		metrics.IncrCounterWithGroup(metrics.NameSendQueueFullTotal, metrics.GroupNet, 1)
		return 0, errors.New("send queue is full")
	}
}

func (t *tcpctx) setReadDeadline() error {
	if t.transport.IdleTimeout > 0 {
		return t.conn.SetReadDeadline(time.Now().Add(time.Duration(t.transport.IdleTimeout) * time.Second))
	}
	return nil
}

func (t *tcpctx) setWriteDeadline() error {
	if t.transport.IdleTimeout > 0 {
		return t.conn.SetWriteDeadline(time.Now().Add(time.Duration(t.transport.IdleTimeout) * time.Second))
	}
	return nil
}
