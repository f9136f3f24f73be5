// Package dispatcher routes framed messages from the transports to their
// handlers. This file implements the filter mechanism that pre-processes
// deliveries before they reach a handler.
package dispatcher

import (
	"github.com/dvellum/framelib/metrics"
)

// DispatcherFilterHandleFunc is the terminal of a filter chain: the function
// invoked once a delivery has passed every filter.
type DispatcherFilterHandleFunc func(dd *DispatcherDelivery) error

// DispatcherFilter intercepts a delivery, performs its logic and passes
// control to the next stage. Returning without calling next short-circuits
// the chain.
type DispatcherFilter func(dd *DispatcherDelivery, next DispatcherFilterHandleFunc) error

// DispatcherFilterChain is the ordered filter pipeline.
type DispatcherFilterChain []DispatcherFilter

// Handle runs the chain for one delivery, ending at f. An empty chain calls
// f directly.
func (fc DispatcherFilterChain) Handle(dd *DispatcherDelivery, f DispatcherFilterHandleFunc) error {
	if len(fc) == 0 {
		return f(dd)
	}
	return fc[0](dd, func(dd *DispatcherDelivery) error {
		return fc[1:].Handle(dd, f)
	})
}

// buildNameFilterMap converts the configured name list into a lookup map.
// Reload swaps the whole map so readers never observe a partial update.
func buildNameFilterMap(names []string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, name := range names {
		m[name] = struct{}{}
	}
	return m
}

// nameFilter drops deliveries whose message name appears in the configured
// filter list. Dropped deliveries stop the chain and are counted but not
// treated as errors.
func (d *Dispatcher) nameFilter(dd *DispatcherDelivery, next DispatcherFilterHandleFunc) error {
	d.lock.RLock()
	_, filtered := d.nameFilterMap[dd.MsgName()]
	d.lock.RUnlock()

	if !filtered {
		return next(dd)
	}

	metrics.IncrCounterWithGroup(metrics.NameFilteredTotal, metrics.GroupNet, 1)
	return nil
}
