package codec

import (
	"errors"
	"fmt"

	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
)

// ParseStatus tags the four outcomes of the discriminating parser.
type ParseStatus int

const (
	// ParsedRecord: a prefix matched and the full record decoded.
	ParsedRecord ParseStatus = iota
	// ParsedRaw: the prefix matched no registered schema; Raw carries the
	// prefix octets plus whatever further input was already buffered.
	ParsedRaw
	// ParsedEmpty: the source held no complete prefix.
	ParsedEmpty
	// ParsedIncomplete: the prefix matched but the source ran dry before
	// the record was complete.
	ParsedIncomplete
)

// String returns the outcome name.
func (s ParseStatus) String() string {
	switch s {
	case ParsedRecord:
		return "record"
	case ParsedRaw:
		return "raw"
	case ParsedEmpty:
		return "empty"
	case ParsedIncomplete:
		return "incomplete"
	default:
		return "unknown"
	}
}

// ParseResult is one framed unit read by the discriminating parser.
// Exactly one of Record and Raw is populated, according to Status.
type ParseResult struct {
	Status ParseStatus
	Record *Record
	Raw    []byte
}

// MsgParser is the discriminating parser: a multiplexer over record
// schemas that each begin with a constant-valued integer prefix. It reads
// exactly as many octets as the matched schema requires and never blocks
// on bytes it does not need.
type MsgParser struct {
	width    int
	byPrefix map[string]*Schema
	schemas  []*Schema
}

// NewMsgParser registers the candidate schemas. Every candidate must carry
// a prefix constant, all prefixes must have the same width, and no two
// candidates may share a prefix value; violations are SchemaErrors.
func NewMsgParser(schemas ...*Schema) (*MsgParser, error) {
	if len(schemas) == 0 {
		return nil, &SchemaError{Reason: "no schemas registered"}
	}
	p := &MsgParser{byPrefix: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		prefix, width, ok := s.PrefixConstant()
		if !ok {
			return nil, &SchemaError{
				Schema: s.name,
				Reason: "schema has no constant integer prefix",
			}
		}
		if p.width == 0 {
			p.width = width
		} else if width != p.width {
			return nil, &SchemaError{
				Schema: s.name,
				Reason: fmt.Sprintf("prefix width %d disagrees with registered width %d", width, p.width),
			}
		}
		if prev, dup := p.byPrefix[string(prefix)]; dup {
			return nil, &SchemaError{
				Schema: s.name,
				Reason: fmt.Sprintf("prefix % x already registered by %s", prefix, prev.name),
			}
		}
		p.byPrefix[string(prefix)] = s
		p.schemas = append(p.schemas, s)
	}
	return p, nil
}

// PrefixWidth returns the discriminator width in octets.
func (p *MsgParser) PrefixWidth() int { return p.width }

// Schemas returns the registered candidates in registration order.
func (p *MsgParser) Schemas() []*Schema { return p.schemas }

// Parse reads one framed message from the source. Outcomes are returned
// as distinct result shapes rather than errors, so callers can drive a
// read loop without special-casing: a matched record, an unrecognised raw
// payload, an empty source, or an incomplete frame. The returned error is
// reserved for failures other than running out of input.
func (p *MsgParser) Parse(src *Source) (ParseResult, error) {
	res, err := p.parse(src)
	if err == nil {
		metrics.IncrCounterWithDimGroup(metrics.NameParseTotal, metrics.GroupCodec, 1, metrics.Dimension{
			metrics.DimResult: res.Status.String(),
		})
	}
	return res, err
}

func (p *MsgParser) parse(src *Source) (ParseResult, error) {
	prefix, err := src.ReadFull(p.width)
	if err != nil {
		// ReadFull pushed any partial prefix back, nothing is lost.
		return ParseResult{Status: ParsedEmpty}, nil
	}

	s, ok := p.byPrefix[string(prefix)]
	if !ok {
		raw := append(prefix, src.Drain()...)
		return ParseResult{Status: ParsedRaw, Raw: raw}, nil
	}

	// Let the schema re-read and validate its own prefix field.
	src.Unread(prefix)
	rec, err := s.Parse(src)
	if err != nil {
		var sr *ShortReadError
		if errors.As(err, &sr) {
			log.Error().
				Str("schema", s.name).
				Str("field", sr.Field).
				Err(err).
				Msg("incomplete message")
			return ParseResult{Status: ParsedIncomplete}, nil
		}
		return ParseResult{}, err
	}
	return ParseResult{Status: ParsedRecord, Record: rec}, nil
}

// ParseBytes runs Parse over an in-memory buffer.
func (p *MsgParser) ParseBytes(b []byte) (ParseResult, error) {
	return p.Parse(NewBytesSource(b))
}
