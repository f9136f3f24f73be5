package codec

import (
	"bytes"
	"io"
)

// Source is the input abstraction consumed by parsing. It wraps either an
// in-memory buffer or a streaming reader and adds the three operations the
// engine needs beyond plain reads: read-exactly-k, read-until-null for
// autosized strings, and pushback so a discriminating parser can re-read a
// prefix it has already consumed.
type Source struct {
	r       io.Reader
	pending []byte // pushed-back octets, consumed before r
}

// NewSource wraps a streaming reader. Reads block exactly as the underlying
// reader does; closing the reader mid-parse surfaces as a ShortReadError.
func NewSource(r io.Reader) *Source {
	return &Source{r: r}
}

// NewBytesSource wraps an in-memory buffer. The whole buffer counts as
// already buffered for Drain.
func NewBytesSource(b []byte) *Source {
	return &Source{r: bytes.NewReader(b)}
}

// Unread pushes octets back onto the front of the source. The next reads
// consume them before touching the underlying reader. Multiple pushbacks
// stack front-first.
func (s *Source) Unread(b []byte) {
	if len(b) == 0 {
		return
	}
	if len(s.pending) == 0 {
		s.pending = append([]byte(nil), b...)
		return
	}
	merged := make([]byte, 0, len(b)+len(s.pending))
	merged = append(merged, b...)
	merged = append(merged, s.pending...)
	s.pending = merged
}

// ReadFull reads exactly n octets. If the source ends before n octets are
// available it returns a ShortReadError carrying the deficit; the octets
// read so far are pushed back so the caller can recover them.
func (s *Source) ReadFull(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	got := 0

	if len(s.pending) > 0 {
		got = copy(out, s.pending)
		s.pending = s.pending[got:]
		if len(s.pending) == 0 {
			s.pending = nil
		}
	}
	for got < n {
		m, err := s.r.Read(out[got:])
		got += m
		if err != nil {
			s.Unread(out[:got])
			return nil, &ShortReadError{Want: n, Got: got}
		}
	}
	return out, nil
}

// ReadUntilNull reads octets up to and including the next 0x00 terminator
// and returns them without the terminator. Reaching end of input before a
// terminator is a ShortReadError.
func (s *Source) ReadUntilNull() ([]byte, error) {
	var out []byte

	for i, b := range s.pending {
		if b == 0 {
			out = append(out, s.pending[:i]...)
			s.pending = s.pending[i+1:]
			if len(s.pending) == 0 {
				s.pending = nil
			}
			return out, nil
		}
	}
	out = append(out, s.pending...)
	s.pending = nil

	one := make([]byte, 1)
	for {
		m, err := s.r.Read(one)
		if m == 1 {
			if one[0] == 0 {
				return out, nil
			}
			out = append(out, one[0])
			continue
		}
		if err != nil {
			s.Unread(out)
			return nil, &ShortReadError{Want: len(out) + 1, Got: len(out)}
		}
	}
}

// buffered is satisfied by readers that can report how many octets are
// immediately available without blocking, such as bufio.Reader.
type buffered interface {
	Buffered() int
}

// lengther is satisfied by bytes.Reader and strings.Reader.
type lengther interface {
	Len() int
}

// Drain returns every octet that can be read without blocking: pushed-back
// octets plus whatever the underlying reader reports as buffered. It never
// waits for more input, so it is safe to call on a live network stream.
func (s *Source) Drain() []byte {
	out := s.pending
	s.pending = nil

	avail := 0
	switch r := s.r.(type) {
	case buffered:
		avail = r.Buffered()
	case lengther:
		avail = r.Len()
	}
	if avail > 0 {
		rest := make([]byte, avail)
		m, _ := io.ReadFull(s.r, rest)
		out = append(out, rest[:m]...)
	}
	return out
}
