package codec

import "fmt"

// Builder declares a record schema one field at a time. The call order of
// Field is the wire order; Build validates the declaration as a whole and
// returns the immutable Schema. A Builder is single-use.
type Builder struct {
	name     string
	base     *Schema
	order    ByteOrder
	hasOrder bool
	fields   []schemaField
	err      error
	seen     map[Codec]string
}

// NewSchema starts a schema declaration for the given record name.
func NewSchema(name string) *Builder {
	return &Builder{name: name, seen: make(map[Codec]string)}
}

// Extend bases this schema on another: the base's fields come first in the
// base's order, fields redeclared here replace the base codec in place, and
// fields new to this declaration append after the base's in their own
// declaration order.
func (b *Builder) Extend(base *Schema) *Builder {
	if b.base != nil && b.err == nil {
		b.err = &SchemaError{Schema: b.name, Reason: "Extend called twice"}
	}
	b.base = base
	return b
}

// ByteOrder overrides the process-wide byte order for this schema only.
func (b *Builder) ByteOrder(o ByteOrder) *Builder {
	if !o.valid() && b.err == nil {
		b.err = &SchemaError{Schema: b.name, Reason: fmt.Sprintf("unrecognised byte order %q", string(o))}
	}
	b.order = o
	b.hasOrder = true
	return b
}

// Field appends a named field bound to its own codec instance. Binding one
// codec instance to two fields makes their order unspecified; the builder
// warns and rejects the schema.
func (b *Builder) Field(name string, c Codec) *Builder {
	if c == nil {
		if b.err == nil {
			b.err = &SchemaError{Schema: b.name, Reason: "nil codec for field " + name}
		}
		return b
	}
	if prev, dup := b.seen[c]; dup {
		emitWarning(WarnAliasedFieldOrder, b.name, name, "codec shared with field %q", prev)
		if b.err == nil {
			b.err = &SchemaError{
				Schema: b.name,
				Reason: fmt.Sprintf("fields %q and %q share one codec instance", prev, name),
			}
		}
		return b
	}
	b.seen[c] = name
	b.fields = append(b.fields, schemaField{name: name, codec: c})
	return b
}

// Build validates the declaration and returns the immutable schema.
func (b *Builder) Build() (*Schema, error) {
	if b.err != nil {
		return nil, b.err
	}

	fields, err := b.mergeBase()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &SchemaError{Schema: b.name, Reason: "no fields declared"}
	}

	s := &Schema{
		name:     b.name,
		fields:   fields,
		index:    make(map[string]int, len(fields)),
		order:    b.order,
		hasOrder: b.hasOrder,
	}
	for i, f := range fields {
		s.index[f.name] = i
	}

	for i, f := range fields {
		if err := validateCodec(b.name, f.name, f.codec); err != nil {
			return nil, err
		}
		if err := b.checkLengthRefs(s, i, f.codec); err != nil {
			return nil, err
		}
	}

	b.classifySize(s)
	b.detectPrefix(s)
	return s, nil
}

// MustBuild is Build for statically known declarations; it panics on a
// SchemaError.
func (b *Builder) MustBuild() *Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

// mergeBase resolves inheritance-by-override: base fields keep their
// positional slots, overridden codecs substitute in place, new fields
// append.
func (b *Builder) mergeBase() ([]schemaField, error) {
	declared := make(map[string]int, len(b.fields))
	for i, f := range b.fields {
		if _, dup := declared[f.name]; dup {
			return nil, &SchemaError{Schema: b.name, Reason: "duplicate field " + f.name}
		}
		declared[f.name] = i
	}
	if b.base == nil {
		return b.fields, nil
	}

	overridden := make(map[string]bool, len(b.fields))
	merged := make([]schemaField, 0, len(b.base.fields)+len(b.fields))
	for _, bf := range b.base.fields {
		if i, ok := declared[bf.name]; ok {
			merged = append(merged, b.fields[i])
			overridden[bf.name] = true
			continue
		}
		merged = append(merged, bf)
	}
	for _, f := range b.fields {
		if !overridden[f.name] {
			merged = append(merged, f)
		}
	}
	return merged, nil
}

// validateCodec checks the option surface of one codec, recursing through
// arrays.
func validateCodec(schema, field string, c Codec) error {
	o := c.options()
	if o.hasAlways && o.hasDefault {
		return &SchemaError{
			Schema: schema,
			Reason: fmt.Sprintf("field %q declares both a constant and a default", field),
		}
	}

	switch cc := c.(type) {
	case *bytesCodec:
		if cc.length.Mode() == LenFixed && cc.length.n < 0 {
			return &SchemaError{Schema: schema, Reason: fmt.Sprintf("field %q has negative length", field)}
		}
	case *textCodec:
		if cc.resolveErr != nil {
			return &SchemaError{
				Schema: schema,
				Reason: fmt.Sprintf("field %q uses unknown encoding %q", field, cc.name),
			}
		}
		if cc.length.Mode() == LenFixed && cc.length.n < 0 {
			return &SchemaError{Schema: schema, Reason: fmt.Sprintf("field %q has negative length", field)}
		}
		if cc.length.Mode() == LenAuto && cc.encodingEmbedsNull() {
			emitWarning(WarnUnsafeAutosize, schema, field,
				"encoding %q embeds null octets inside null-terminated framing", cc.name)
		}
	case *arrayCodec:
		if cc.length.Mode() == LenFixed && cc.length.n < 0 {
			return &SchemaError{Schema: schema, Reason: fmt.Sprintf("field %q has negative length", field)}
		}
		if cc.opts.hasAlways && cc.elem.options().hasAlways {
			return &SchemaError{
				Schema: schema,
				Reason: fmt.Sprintf("field %q declares a constant at both array and element level", field),
			}
		}
		if cc.length.Mode() == LenAuto && !isAutosizedString(cc.elem) {
			return &SchemaError{
				Schema: schema,
				Reason: fmt.Sprintf("field %q: auto-length arrays require an autosized string element", field),
			}
		}
		return validateCodec(schema, field, cc.elem)
	}
	return nil
}

func isAutosizedString(c Codec) bool {
	switch cc := c.(type) {
	case *bytesCodec:
		return cc.length.Mode() == LenAuto
	case *textCodec:
		return cc.length.Mode() == LenAuto
	}
	return false
}

// checkLengthRefs rejects dangling and forward sibling-length references:
// a FieldLen name must resolve to an integer field declared before the
// referring one, so a left-to-right parse always knows the length.
func (b *Builder) checkLengthRefs(s *Schema, pos int, c Codec) error {
	var l Length
	switch cc := c.(type) {
	case *bytesCodec:
		l = cc.length
	case *textCodec:
		l = cc.length
	case *arrayCodec:
		if err := b.checkLengthRefs(s, pos, cc.elem); err != nil {
			return err
		}
		l = cc.length
	default:
		return nil
	}
	if l.Mode() != LenFromField {
		return nil
	}
	ref, ok := s.index[l.field]
	if !ok {
		return &SchemaError{
			Schema: b.name,
			Reason: fmt.Sprintf("field %q references undeclared length field %q", s.fields[pos].name, l.field),
		}
	}
	if ref >= pos {
		return &SchemaError{
			Schema: b.name,
			Reason: fmt.Sprintf("field %q references length field %q declared after it", s.fields[pos].name, l.field),
		}
	}
	if _, isInt := s.fields[ref].codec.(*intCodec); !isInt {
		return &SchemaError{
			Schema: b.name,
			Reason: fmt.Sprintf("length field %q of %q is not an integer", l.field, s.fields[pos].name),
		}
	}
	return nil
}

// classifySize marks the schema fixed when every field has a width known
// without an instance, and caches the total.
func (b *Builder) classifySize(s *Schema) {
	total := 0
	for _, f := range s.fields {
		n, err := f.codec.SizeOf(nil, nil)
		if err != nil {
			s.fixed = false
			return
		}
		total += n
	}
	s.fixed = true
	s.fixedSize = total
}

// detectPrefix records the discriminator constant when the first field is
// an integer with a declared constant.
func (b *Builder) detectPrefix(s *Schema) {
	first := s.fields[0]
	ic, ok := first.codec.(*intCodec)
	if !ok || !ic.opts.hasAlways {
		return
	}
	v, err := ic.Convert(ic.opts.always)
	if err != nil {
		return
	}
	s.prefixCodec = first.codec
	s.prefixVal = v
	s.prefixWidth = ic.bits / 8
	s.hasPrefix = true
}
