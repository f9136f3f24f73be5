// Package dispatcher routes framed messages from the transports to their
// handlers. Every delivery passes through a filter chain (name filtering,
// receive rate limiting) before the registry handler bound to its schema is
// invoked. Unrecognised frames fall through to the raw-data handler.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/metrics"
	"github.com/dvellum/framelib/network/handler"
	"github.com/dvellum/framelib/network/message"
	"github.com/dvellum/framelib/network/transport"
	"github.com/dvellum/framelib/utils/strcase"
)

// DispatcherDelivery carries one message through the dispatcher pipeline.
// It wraps the transport delivery with the registry descriptor resolved for
// the decoded record; Info is nil for raw deliveries.
type DispatcherDelivery struct {
	*transport.TransportDelivery
	Info *message.MsgInfo
}

var _ handler.Delivery = (*DispatcherDelivery)(nil)

// MsgName returns the registered name for matched frames and the raw-data
// label otherwise.
func (dd *DispatcherDelivery) MsgName() string {
	if dd.Info != nil {
		return dd.Info.Name
	}
	if dd.Result.Record != nil {
		return strcase.Underscorize(dd.Result.Record.Schema().Name())
	}
	return message.RawDataName
}

// Record returns the decoded record, or nil for raw deliveries.
func (dd *DispatcherDelivery) Record() *codec.Record {
	return dd.Result.Record
}

// Raw returns the unrecognised payload, or nil for record deliveries.
func (dd *DispatcherDelivery) Raw() []byte {
	return dd.Result.Raw
}

// CorrelationID returns the id of the originating connection or exchange.
func (dd *DispatcherDelivery) CorrelationID() string {
	return dd.CorrID
}

// Reply writes v back to the delivery's origin.
func (dd *DispatcherDelivery) Reply(v any) error {
	if dd.SendBack == nil {
		return errors.New("dispatcher: delivery has no send-back channel")
	}
	return dd.SendBack(v)
}

// DispatcherConfig holds the dispatcher's tunable parameters. It is
// decodable from the `dispatcher` config section and hot-reloadable.
type DispatcherConfig struct {
	// RecvRateLimit is the steady-state number of deliveries processed per
	// second, enforced by a token bucket.
	RecvRateLimit int `mapstructure:"recvRateLimit"`
	// TokenBurst is the bucket capacity, allowing short traffic spikes
	// above the steady rate.
	TokenBurst int `mapstructure:"tokenBurst"`
	// NameFilter lists message names to drop before they reach a handler.
	NameFilter []string `mapstructure:"nameFilter"`
}

// GetName returns the configuration key for the dispatcher section.
func (c *DispatcherConfig) GetName() string {
	return "dispatcher"
}

// Validate checks the parameters are within acceptable ranges.
func (c *DispatcherConfig) Validate() error {
	if c.RecvRateLimit <= 0 {
		return fmt.Errorf("RecvRateLimit must be positive")
	}
	if c.TokenBurst <= 0 {
		return fmt.Errorf("TokenBurst must be positive")
	}
	if c.RecvRateLimit > 1000000 {
		return fmt.Errorf("RecvRateLimit cannot exceed 1,000,000 messages per second")
	}
	if c.TokenBurst > c.RecvRateLimit*10 {
		return fmt.Errorf("TokenBurst cannot exceed 10 times RecvRateLimit")
	}
	return nil
}

// Dispatcher is the hub between the transports and the handlers. It applies
// the filter chain to every delivery, resolves the registry descriptor for
// decoded records, invokes the bound handler and sends its reply, and routes
// everything else to the raw handler or the fallback receiver.
type Dispatcher struct {
	registry      *message.Registry
	fallback      handler.Receiver
	recvLimiter   *DispatcherRecvLimiter
	filters       DispatcherFilterChain
	nameFilterMap map[string]struct{}

	config *DispatcherConfig
	lock   sync.RWMutex
}

// NewDispatcher creates a dispatcher over the given registry. A nil cfg
// uses the defaults.
func NewDispatcher(cfg *DispatcherConfig, reg *message.Registry) (*Dispatcher, error) {
	if reg == nil {
		return nil, errors.New("dispatcher: registry is required")
	}
	if cfg == nil {
		cfg = &DispatcherConfig{
			RecvRateLimit: 10000,
			TokenBurst:    1000,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dispatcher configuration: %w", err)
	}

	d := &Dispatcher{
		registry:    reg,
		recvLimiter: NewTokenRecvLimiter(cfg.RecvRateLimit, cfg.TokenBurst),
		config:      cfg,
	}
	d.nameFilterMap = buildNameFilterMap(cfg.NameFilter)

	// Filters run in the order they are appended.
	d.filters = append(d.filters, d.nameFilter)
	d.filters = append(d.filters, d.recvLimiter.recvLimiterFilter)

	return d, nil
}

// RegisterFallback sets the receiver for deliveries with no bound handler.
// Call during initialization; not safe for concurrent use.
func (d *Dispatcher) RegisterFallback(r handler.Receiver) error {
	if r == nil {
		return errors.New("dispatcher: fallback receiver is nil")
	}
	if d.fallback != nil {
		return errors.New("dispatcher: a fallback receiver is already registered")
	}
	d.fallback = r
	return nil
}

// Reload applies a new configuration at runtime. The limiter and name
// filter swap atomically; in-flight deliveries see either the old or the
// new settings.
func (d *Dispatcher) Reload(cfg *DispatcherConfig) error {
	if cfg == nil {
		return errors.New("dispatcher: reload with nil configuration")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid dispatcher configuration: %w", err)
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	d.config = cfg
	d.nameFilterMap = buildNameFilterMap(cfg.NameFilter)
	d.recvLimiter.Reload(cfg.RecvRateLimit, cfg.TokenBurst)
	return nil
}

// OnRecvTransportPkg accepts one framed unit from a transport, making the
// dispatcher the receiver the transports serve. Empty and incomplete
// results carry nothing to handle and are dropped here; incomplete ones
// are counted first.
func (d *Dispatcher) OnRecvTransportPkg(td *transport.TransportDelivery) error {
	if td == nil {
		return errors.New("dispatcher: nil transport delivery")
	}

	switch td.Result.Status {
	case codec.ParsedEmpty:
		return nil
	case codec.ParsedIncomplete:
		metrics.IncrCounterWithGroup(metrics.NameIncompleteFrameTotal, metrics.GroupNet, 1)
		return nil
	}

	dd := &DispatcherDelivery{TransportDelivery: td}
	if td.Result.Status == codec.ParsedRecord {
		if info, ok := d.registry.InfoFor(td.Result.Record); ok {
			dd.Info = info
		}
	}

	metrics.IncrCounterWithGroup(metrics.NameDispatchTotal, metrics.GroupNet, 1)
	if err := d.filters.Handle(dd, d.deliver); err != nil {
		metrics.IncrCounterWithGroup(metrics.NameDispatchErrorTotal, metrics.GroupNet, 1)
		return err
	}
	return nil
}

// deliver is the final step of the filter chain: invoke the handler bound
// to the delivery and send its reply.
func (d *Dispatcher) deliver(dd *DispatcherDelivery) error {
	h := d.chooseHandler(dd)
	if h == nil {
		if d.fallback != nil {
			return d.fallback.OnRecvDelivery(dd)
		}
		return fmt.Errorf("dispatcher: no receiver registered for message %q", dd.MsgName())
	}

	res, err := h(dd)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}
	return dd.Reply(res)
}

// chooseHandler resolves the handler for a delivery: the one bound to its
// descriptor for matched records, the raw handler for unrecognised frames.
func (d *Dispatcher) chooseHandler(dd *DispatcherDelivery) handler.Func {
	if dd.Info != nil {
		return dd.Info.Handler
	}
	if dd.Result.Status == codec.ParsedRaw {
		return d.registry.Raw()
	}
	return nil
}
