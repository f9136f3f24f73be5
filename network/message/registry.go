// Package message implements the registry binding record schemas to their
// handlers. Each schema registers under the underscorized form of its name,
// which is also the label filters, metrics and wire logs use for it. The
// registry builds the discriminating parser the transports frame with.
package message

import (
	"fmt"

	"github.com/dvellum/framelib/codec"
	"github.com/dvellum/framelib/network/handler"
	"github.com/dvellum/framelib/utils/strcase"
)

// RawDataName is the label deliveries carry when the discriminator matched
// no registered schema. Schemas whose underscorized name would collide with
// it are rejected.
const RawDataName = "raw_data"

// MsgInfo is the registry's descriptor for one schema: the schema itself,
// the name it registered under and the handler bound to it. The handler may
// be attached after registration via Bind.
type MsgInfo struct {
	Schema  *codec.Schema
	Name    string
	Handler handler.Func
}

// Registry maps underscorized schema names to their descriptors. It is
// populated during startup and read-only afterwards; registration is not
// safe for concurrent use.
type Registry struct {
	byName  map[string]*MsgInfo
	ordered []*MsgInfo
	raw     handler.Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*MsgInfo)}
}

// Register adds a schema under the underscorized form of its name and binds
// h to it. A nil h registers the schema alone; Bind attaches the handler
// later. Duplicate and reserved names are rejected.
func (r *Registry) Register(s *codec.Schema, h handler.Func) error {
	if s == nil {
		return fmt.Errorf("message: cannot register a nil schema")
	}
	name := strcase.Underscorize(s.Name())
	if name == RawDataName {
		return fmt.Errorf("message: schema %q maps to the reserved name %q", s.Name(), RawDataName)
	}
	if prev, ok := r.byName[name]; ok {
		return fmt.Errorf("message: name %q already registered by schema %q", name, prev.Schema.Name())
	}
	info := &MsgInfo{Schema: s, Name: name, Handler: h}
	r.byName[name] = info
	r.ordered = append(r.ordered, info)
	return nil
}

// Bind attaches a handler to an already registered name. This supports the
// two-phase setup where schemas are declared in one place and handlers in
// another.
func (r *Registry) Bind(name string, h handler.Func) error {
	info, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("message: cannot bind handler, name %q is not registered", name)
	}
	info.Handler = h
	return nil
}

// RegisterRaw sets the fallback handler for frames whose discriminator
// matched no schema.
func (r *Registry) RegisterRaw(h handler.Func) {
	r.raw = h
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*MsgInfo, bool) {
	info, ok := r.byName[name]
	return info, ok
}

// InfoFor returns the descriptor for a decoded record's schema.
func (r *Registry) InfoFor(rec *codec.Record) (*MsgInfo, bool) {
	if rec == nil {
		return nil, false
	}
	return r.Lookup(strcase.Underscorize(rec.Schema().Name()))
}

// Raw returns the fallback handler, or nil if none is registered.
func (r *Registry) Raw() handler.Func {
	return r.raw
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, info := range r.ordered {
		names = append(names, info.Name)
	}
	return names
}

// Parser builds the discriminating parser over every registered schema.
// Schemas without a constant integer prefix, mixed prefix widths and
// duplicate prefix values all surface here as schema errors.
func (r *Registry) Parser() (*codec.MsgParser, error) {
	schemas := make([]*codec.Schema, 0, len(r.ordered))
	for _, info := range r.ordered {
		schemas = append(schemas, info.Schema)
	}
	return codec.NewMsgParser(schemas...)
}
