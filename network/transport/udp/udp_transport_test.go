package udp

import (
	"bytes"
	"net"
	"os"
	"testing"
	"time"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/network/dispatcher"
	"github.com/dvellum/framelib/network/handler"
	"github.com/dvellum/framelib/network/message"
	"github.com/dvellum/framelib/network/transport"
)

func TestMain(m *testing.M) {
	if err := log.Initialize(&log.LogCfg{LogLevel: log.WarnLevel, ConsoleAppender: true}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  UDPTransportCfg
		ok   bool
	}{
		{"valid", UDPTransportCfg{Addr: "127.0.0.1:0", MaxDatagramSize: 1 << 16}, true},
		{"empty addr", UDPTransportCfg{MaxDatagramSize: 1 << 16}, false},
		{"zero datagram size", UDPTransportCfg{Addr: "127.0.0.1:0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestStartRequiresDependencies(t *testing.T) {
	tr, err := NewUDPTransport(&UDPTransportCfg{Addr: "127.0.0.1:0", MaxDatagramSize: 1 << 16})
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	if err := tr.Start(transport.TransportOption{}); err == nil {
		t.Error("Start without dependencies must fail")
	}
}

func startEchoServer(t *testing.T) *UDPTransport {
	t.Helper()

	point := codec.NewSchema("Point").
		Field("code", codec.I16(codec.Always(1))).
		Field("x", codec.I32()).
		Field("y", codec.I32()).
		MustBuild()

	reg := message.NewRegistry()
	if err := reg.Register(point, func(d handler.Delivery) (any, error) {
		return d.Record(), nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.RegisterRaw(func(d handler.Delivery) (any, error) { return d.Raw(), nil })

	parser, err := reg.Parser()
	if err != nil {
		t.Fatalf("Parser: %v", err)
	}
	disp, err := dispatcher.NewDispatcher(nil, reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	wire, err := log.NewWireLogger(&log.WireCfg{Prefix: "udptest", LogDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewWireLogger: %v", err)
	}
	t.Cleanup(wire.Close)

	tr, err := NewUDPTransport(&UDPTransportCfg{Addr: "127.0.0.1:0", MaxDatagramSize: 1 << 16})
	if err != nil {
		t.Fatalf("NewUDPTransport: %v", err)
	}
	if err := tr.Start(transport.TransportOption{Receiver: disp, Parser: parser, Wire: wire}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = tr.Stop() })
	return tr
}

func exchange(t *testing.T, tr *UDPTransport, datagram []byte) []byte {
	t.Helper()
	conn, err := net.Dial("udp", tr.ListenAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write(datagram); err != nil {
		t.Fatalf("Write: %v", err)
	}
	back := make([]byte, 1<<16)
	n, err := conn.Read(back)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return back[:n]
}

func TestEchoRoundTrip(t *testing.T) {
	tr := startEchoServer(t)

	frame := []byte{0, 1, 0, 0, 0, 5, 0, 0, 0, 6}
	if back := exchange(t, tr, frame); !bytes.Equal(back, frame) {
		t.Fatalf("echo = % x, want % x", back, frame)
	}
}

func TestUnknownPrefixReachesRawHandler(t *testing.T) {
	tr := startEchoServer(t)

	frame := []byte{0, 9, 'A', 'B'}
	if back := exchange(t, tr, frame); !bytes.Equal(back, frame) {
		t.Fatalf("raw echo = % x, want % x", back, frame)
	}
}
