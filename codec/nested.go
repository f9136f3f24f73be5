package codec

// nestedCodec lets a record schema act as a field codec inside another
// record, inlining the nested record's fields on the wire.
type nestedCodec struct {
	opts   fieldOptions
	schema *Schema
}

// Nested binds a schema as a field codec. The nested record encodes under
// its own byte order rules and carries the usual default/constant option
// surface at the binding site.
func Nested(s *Schema, opts ...Option) Codec {
	c := &nestedCodec{schema: s}
	for _, o := range opts {
		o(&c.opts)
	}
	return c
}

func (c *nestedCodec) options() *fieldOptions { return &c.opts }

func (c *nestedCodec) Zero() any { return c.schema.newDefault() }

func (c *nestedCodec) Convert(v any) (any, error) {
	switch rec := v.(type) {
	case *Record:
		if rec.schema != c.schema {
			return nil, &CoerceError{
				Value:  v,
				Reason: "record of schema " + rec.schema.name + " where " + c.schema.name + " expected",
			}
		}
		return rec, nil
	case map[string]any:
		return c.schema.NewNamed(rec)
	}
	return nil, &CoerceError{Value: v, Reason: "expected a " + c.schema.name + " record"}
}

func (c *nestedCodec) Parse(src *Source, _ *Record) (any, error) {
	return c.schema.Parse(src)
}

func (c *nestedCodec) Serialize(v any, _ *Record) ([]byte, error) {
	cv, err := c.Convert(v)
	if err != nil {
		return nil, err
	}
	return c.schema.Serialize(cv.(*Record))
}

func (c *nestedCodec) SizeOf(v any, _ *Record) (int, error) {
	if v == nil {
		return c.schema.SizeOf(nil)
	}
	cv, err := c.Convert(v)
	if err != nil {
		return 0, err
	}
	return c.schema.SizeOf(cv.(*Record))
}

func (c *nestedCodec) Format(v any, _ *Record) (string, error) {
	if v == nil {
		return c.schema.formatBody(nil)
	}
	cv, err := c.Convert(v)
	if err != nil {
		return "", err
	}
	return c.schema.formatBody(cv.(*Record))
}
