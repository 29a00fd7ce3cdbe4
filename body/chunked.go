package body

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/net/http/httpguts"
)

// Extension is the optional single ";key=value" extension on a chunk size line.
type Extension struct {
	Key   string
	Value string
}

// Chunk is one unit of a chunked body. An empty Data marks the end of the body.
type Chunk struct {
	Ext  *Extension
	Data []byte
}

// ReadChunk reads one chunk from r: a hexadecimal size line with an
// optional extension, the chunk data and its CRLF terminator.
func ReadChunk(r *bufio.Reader) (Chunk, error) {
	line, err := ReadLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Chunk{}, fmt.Errorf("%w: missing chunk size line", ErrUnderflow)
		}
		return Chunk{}, err
	}
	size, ext, err := parseChunkSizeLine(line)
	if err != nil {
		return Chunk{}, err
	}

	data := make([]byte, size+2)
	if n, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Chunk{}, fmt.Errorf("%w: %d < %d", ErrUnderflow, n, len(data))
		}
		return Chunk{}, err
	}
	if data[size] != '\r' || data[size+1] != '\n' {
		return Chunk{}, fmt.Errorf("%w: bad chunk data termination: %q", ErrBadChunk, data[size:])
	}
	return Chunk{Ext: ext, Data: data[:size]}, nil
}

func parseChunkSizeLine(line []byte) (int, *Extension, error) {
	sizePart, extPart, hasExt := bytes.Cut(line, []byte(";"))
	size, err := strconv.ParseUint(string(sizePart), 16, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: bad chunk size: %q", ErrBadChunk, sizePart)
	}
	if size > MaxChunkSize {
		return 0, nil, fmt.Errorf("%w: need 0 <= chunk_size <= %d; got %d", ErrOverflow, MaxChunkSize, size)
	}
	if !hasExt {
		return int(size), nil, nil
	}
	key, value, ok := bytes.Cut(extPart, []byte("="))
	if !ok || !validToken(key) || !validToken(value) {
		return 0, nil, fmt.Errorf("%w: bad chunk extension: %q", ErrBadChunk, extPart)
	}
	return int(size), &Extension{Key: string(key), Value: string(value)}, nil
}

func validToken(b []byte) bool {
	return len(b) > 0 && httpguts.ValidHeaderFieldName(string(b))
}

// WriteChunk writes ch to w in wire format and returns the number of bytes written.
func WriteChunk(w io.Writer, ch Chunk) (int64, error) {
	if len(ch.Data) > MaxChunkSize {
		return 0, fmt.Errorf("%w: need 0 <= chunk_size <= %d; got %d", ErrOverflow, MaxChunkSize, len(ch.Data))
	}
	line := strconv.FormatInt(int64(len(ch.Data)), 16)
	if ch.Ext != nil {
		if !validToken([]byte(ch.Ext.Key)) || !validToken([]byte(ch.Ext.Value)) {
			return 0, fmt.Errorf("%w: bad chunk extension: %s=%s", ErrBadChunk, ch.Ext.Key, ch.Ext.Value)
		}
		line += ";" + ch.Ext.Key + "=" + ch.Ext.Value
	}

	buf := make([]byte, 0, len(line)+len(ch.Data)+4)
	buf = append(buf, line...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, ch.Data...)
	buf = append(buf, "\r\n"...)
	n, err := w.Write(buf)
	return int64(n), err
}

// Chunked is a chunked body read from a connection. It is closed once the
// final empty chunk has been read.
type Chunked struct {
	r       *bufio.Reader
	pending []byte
	closed  bool
}

// NewChunked returns a chunked body reading from r. When r is a
// *bufio.Reader it is used directly so no buffered bytes are lost.
func NewChunked(r io.Reader) *Chunked {
	return &Chunked{r: bufferedReader(r)}
}

// Kind implements Body.
func (c *Chunked) Kind() Kind { return KindChunked }

// ContentLength implements Body. Chunked bodies have no declared length.
func (c *Chunked) ContentLength() int64 { return -1 }

// Closed implements Body.
func (c *Chunked) Closed() bool { return c.closed }

// ReadChunk returns the next chunk. Data left over from a partial Read is
// returned first as a chunk of its own.
func (c *Chunked) ReadChunk() (Chunk, error) {
	if len(c.pending) > 0 {
		data := c.pending
		c.pending = nil
		return Chunk{Data: data}, nil
	}
	if c.closed {
		return Chunk{}, ErrClosed
	}
	ch, err := ReadChunk(c.r)
	if err != nil {
		return Chunk{}, err
	}
	if len(ch.Data) == 0 {
		c.closed = true
	}
	return ch, nil
}

// Read implements io.Reader over the concatenated chunk data.
func (c *Chunked) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		if c.closed {
			return 0, io.EOF
		}
		ch, err := c.ReadChunk()
		if err != nil {
			return 0, err
		}
		c.pending = ch.Data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// ReadAll implements Stream.
func (c *Chunked) ReadAll() ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	var buf []byte
	for {
		ch, err := c.ReadChunk()
		if err != nil {
			return nil, err
		}
		if len(buf)+len(ch.Data) > MaxReadSize {
			return nil, fmt.Errorf("%w: %d > %d", ErrOverflow, len(buf)+len(ch.Data), MaxReadSize)
		}
		buf = append(buf, ch.Data...)
		if c.closed {
			if buf == nil {
				buf = []byte{}
			}
			return buf, nil
		}
	}
}

// WriteTo implements Body by re-encoding every remaining chunk to w.
func (c *Chunked) WriteTo(w io.Writer) (int64, error) {
	if c.closed {
		return 0, ErrClosed
	}
	var total int64
	for {
		ch, err := c.ReadChunk()
		if err != nil {
			return total, err
		}
		n, err := WriteChunk(w, ch)
		total += n
		if err != nil {
			return total, err
		}
		if c.closed {
			return total, nil
		}
	}
}
