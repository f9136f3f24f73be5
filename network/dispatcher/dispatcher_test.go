package dispatcher

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/log"
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

func testCfg() *DispatcherConfig {
	return &DispatcherConfig{
		RecvRateLimit: 10000,
		TokenBurst:    1000,
	}
}

func pointSchema(t *testing.T) *codec.Schema {
	t.Helper()
	return codec.NewSchema("Point").
		Field("code", codec.I16(codec.Always(1))).
		Field("x", codec.I32()).
		Field("y", codec.I32()).
		MustBuild()
}

func recordDelivery(rec *codec.Record, sendBack transport.SendBackFunc) *transport.TransportDelivery {
	return &transport.TransportDelivery{
		Result:   codec.ParseResult{Status: codec.ParsedRecord, Record: rec},
		CorrID:   "test-conn",
		SendBack: sendBack,
	}
}

func rawDelivery(raw []byte, sendBack transport.SendBackFunc) *transport.TransportDelivery {
	return &transport.TransportDelivery{
		Result:   codec.ParseResult{Status: codec.ParsedRaw, Raw: raw},
		CorrID:   "test-conn",
		SendBack: sendBack,
	}
}

func TestDispatchSuccessEndToEnd(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()

	handled := 0
	if err := reg.Register(point, func(d handler.Delivery) (any, error) {
		handled++
		if d.MsgName() != "point" {
			t.Errorf("MsgName = %q, want point", d.MsgName())
		}
		if d.CorrelationID() != "test-conn" {
			t.Errorf("CorrelationID = %q", d.CorrelationID())
		}
		if d.Record() == nil || d.Record().Get("x") != int64(5) {
			t.Errorf("Record = %v", d.Record())
		}
		return d.Record(), nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	var sent any
	td := recordDelivery(point.MustNew(1, 5, 6), func(v any) error {
		sent = v
		return nil
	})
	if err := d.OnRecvTransportPkg(td); err != nil {
		t.Fatalf("OnRecvTransportPkg: %v", err)
	}
	if handled != 1 {
		t.Fatalf("handler called %d times, want 1", handled)
	}
	rec, ok := sent.(*codec.Record)
	if !ok || rec.Get("y") != int64(6) {
		t.Fatalf("reply = %v, want the echoed record", sent)
	}
}

func TestDispatchNoReceiver(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()
	if err := reg.Register(point, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	err = d.OnRecvTransportPkg(recordDelivery(point.MustNew(1, 5, 6), nil))
	if err == nil || !strings.Contains(err.Error(), "no receiver registered") {
		t.Fatalf("schema without handler: %v", err)
	}

	err = d.OnRecvTransportPkg(rawDelivery([]byte{0, 9}, nil))
	if err == nil || !strings.Contains(err.Error(), "no receiver registered") {
		t.Fatalf("raw without raw handler: %v", err)
	}
}

func TestDispatchRawFallback(t *testing.T) {
	reg := message.NewRegistry()
	if err := reg.Register(pointSchema(t), nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var got []byte
	reg.RegisterRaw(func(d handler.Delivery) (any, error) {
		if d.MsgName() != message.RawDataName {
			t.Errorf("MsgName = %q, want %q", d.MsgName(), message.RawDataName)
		}
		got = d.Raw()
		return []byte("ack"), nil
	})

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	var sent any
	td := rawDelivery([]byte{0, 9, 'A'}, func(v any) error {
		sent = v
		return nil
	})
	if err := d.OnRecvTransportPkg(td); err != nil {
		t.Fatalf("OnRecvTransportPkg: %v", err)
	}
	if !bytes.Equal(got, []byte{0, 9, 'A'}) {
		t.Errorf("raw handler saw % x", got)
	}
	if b, ok := sent.([]byte); !ok || !bytes.Equal(b, []byte("ack")) {
		t.Errorf("reply = %v", sent)
	}
}

type fallbackReceiver struct {
	called int
	err    error
}

func (r *fallbackReceiver) OnRecvDelivery(handler.Delivery) error {
	r.called++
	return r.err
}

func TestDispatchFallbackReceiver(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()
	if err := reg.Register(point, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	fb := &fallbackReceiver{}
	if err := d.RegisterFallback(fb); err != nil {
		t.Fatalf("RegisterFallback: %v", err)
	}
	if err := d.RegisterFallback(fb); err == nil {
		t.Error("a second fallback must be rejected")
	}
	if err := d.RegisterFallback(nil); err == nil {
		t.Error("a nil fallback must be rejected")
	}

	if err := d.OnRecvTransportPkg(recordDelivery(point.MustNew(1, 5, 6), nil)); err != nil {
		t.Fatalf("OnRecvTransportPkg: %v", err)
	}
	if err := d.OnRecvTransportPkg(rawDelivery([]byte{0, 9}, nil)); err != nil {
		t.Fatalf("OnRecvTransportPkg raw: %v", err)
	}
	if fb.called != 2 {
		t.Errorf("fallback called %d times, want 2", fb.called)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()
	want := errors.New("handler failed")
	if err := reg.Register(point, func(handler.Delivery) (any, error) {
		return nil, want
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	err = d.OnRecvTransportPkg(recordDelivery(point.MustNew(1, 5, 6), nil))
	if !errors.Is(err, want) {
		t.Fatalf("error = %v, want %v", err, want)
	}
}

func TestNameFilterDrops(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()
	handled := 0
	if err := reg.Register(point, func(handler.Delivery) (any, error) {
		handled++
		return nil, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg := testCfg()
	cfg.NameFilter = []string{"point"}
	d, err := NewDispatcher(cfg, reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if err := d.OnRecvTransportPkg(recordDelivery(point.MustNew(1, 5, 6), nil)); err != nil {
		t.Fatalf("filtered delivery must not error: %v", err)
	}
	if handled != 0 {
		t.Errorf("handler called %d times, want the delivery dropped", handled)
	}
}

func TestEmptyAndIncompleteAreDropped(t *testing.T) {
	d, err := NewDispatcher(testCfg(), message.NewRegistry())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if err := d.OnRecvTransportPkg(nil); err == nil {
		t.Error("a nil delivery must error")
	}
	if err := d.OnRecvTransportPkg(&transport.TransportDelivery{
		Result: codec.ParseResult{Status: codec.ParsedEmpty},
	}); err != nil {
		t.Errorf("empty result: %v", err)
	}
	if err := d.OnRecvTransportPkg(&transport.TransportDelivery{
		Result: codec.ParseResult{Status: codec.ParsedIncomplete},
	}); err != nil {
		t.Errorf("incomplete result: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  DispatcherConfig
		ok   bool
	}{
		{"defaults", DispatcherConfig{RecvRateLimit: 10000, TokenBurst: 1000}, true},
		{"zero rate", DispatcherConfig{RecvRateLimit: 0, TokenBurst: 1000}, false},
		{"zero burst", DispatcherConfig{RecvRateLimit: 10000, TokenBurst: 0}, false},
		{"rate too high", DispatcherConfig{RecvRateLimit: 2000000, TokenBurst: 1000}, false},
		{"burst too high", DispatcherConfig{RecvRateLimit: 100, TokenBurst: 1001}, false},
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

func TestReload(t *testing.T) {
	point := pointSchema(t)
	reg := message.NewRegistry()
	handled := 0
	if err := reg.Register(point, func(handler.Delivery) (any, error) {
		handled++
		return nil, nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	d, err := NewDispatcher(testCfg(), reg)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if err := d.Reload(nil); err == nil {
		t.Error("a nil reload must be rejected")
	}
	if err := d.Reload(&DispatcherConfig{RecvRateLimit: -1, TokenBurst: 1}); err == nil {
		t.Error("an invalid reload must be rejected")
	}

	cfg := testCfg()
	cfg.NameFilter = []string{"point"}
	if err := d.Reload(cfg); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if err := d.OnRecvTransportPkg(recordDelivery(point.MustNew(1, 5, 6), nil)); err != nil {
		t.Fatalf("OnRecvTransportPkg: %v", err)
	}
	if handled != 0 {
		t.Errorf("handler called %d times after the reload added a filter", handled)
	}
}

func TestTokenLimiterReload(t *testing.T) {
	l := NewTokenRecvLimiter(100, 10)
	if err := l.Take(); err != nil {
		t.Fatalf("Take: %v", err)
	}
	l.Reload(200, 20)
	if err := l.Take(); err != nil {
		t.Fatalf("Take after reload: %v", err)
	}
}

func TestFunnelLimiter(t *testing.T) {
	l := NewFunnelRecvLimiter(1000)
	l.Take()
	l.Reload(2000)
	l.Take()
}
