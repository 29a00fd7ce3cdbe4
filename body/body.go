// Package body implements HTTP/1.1 message bodies: length-delimited and
// chunked streams read from a connection, in-memory byte bodies, and
// application-generated chunked bodies. Every body reports its Kind so the
// codec can decide framing headers with an exhaustive switch.
package body

import (
	"errors"
	"io"
)

const (
	// MaxLineSize is the longest CRLF-terminated line accepted in a
	// preamble or a chunk size line, terminator included.
	MaxLineSize = 4096

	// MaxChunkSize is the largest chunk data size that is read or written.
	MaxChunkSize = 16 * 1024 * 1024

	// MaxReadSize bounds ReadAll on any stream.
	MaxReadSize = 16 * 1024 * 1024

	// IOSize is the buffer size used for connection reads and writes.
	IOSize = 32 * 1024
)

var (
	ErrClosed      = errors.New("body: already consumed")
	ErrUnderflow   = errors.New("body: underflow")
	ErrOverflow    = errors.New("body: overflow")
	ErrBadChunk    = errors.New("body: bad chunk")
	ErrBadLine     = errors.New("body: bad line termination")
	ErrLineTooLong = errors.New("body: line too long")
)

// Kind identifies the concrete body variant. A nil Body is the "no body" case.
type Kind uint8

const (
	KindBytes Kind = iota + 1
	KindLength
	KindChunked
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindBytes:
		return "bytes"
	case KindLength:
		return "length"
	case KindChunked:
		return "chunked"
	default:
		return "unknown"
	}
}

// Body is implemented by every message body variant.
type Body interface {
	// Kind reports which framing the body needs.
	Kind() Kind

	// ContentLength returns the declared total size, or -1 for chunked bodies.
	ContentLength() int64

	// Closed reports whether the body has been fully consumed.
	Closed() bool

	// WriteTo writes the body, framed for the wire, to w.
	WriteTo(w io.Writer) (int64, error)
}

// Stream is a Body that can also be read by the application, such as a
// request body wrapping the connection.
type Stream interface {
	Body
	io.Reader

	// ReadAll reads the remaining body into memory, bounded by MaxReadSize.
	ReadAll() ([]byte, error)
}

// Bytes is an in-memory body written in a single call.
type Bytes []byte

// Kind implements Body.
func (b Bytes) Kind() Kind { return KindBytes }

// ContentLength implements Body.
func (b Bytes) ContentLength() int64 { return int64(len(b)) }

// Closed implements Body. An in-memory body is never consumed.
func (b Bytes) Closed() bool { return false }

// WriteTo implements Body.
func (b Bytes) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}

// Factory builds the stream bodies used for requests and offered to the
// application for building responses.
type Factory interface {
	// NewLength returns a body of exactly contentLength bytes read from r.
	NewLength(r io.Reader, contentLength int64) (Stream, error)

	// NewChunked returns a chunked body read from r.
	NewChunked(r io.Reader) Stream
}

type defaults struct{}

// Default is the built-in Factory.
var Default Factory = defaults{}

func (defaults) NewLength(r io.Reader, contentLength int64) (Stream, error) {
	return NewLength(r, contentLength)
}

func (defaults) NewChunked(r io.Reader) Stream {
	return NewChunked(r)
}
