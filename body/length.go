package body

import (
	"errors"
	"fmt"
	"io"
)

// Length is a body of exactly ContentLength bytes read from an underlying
// reader. It is closed once every byte has been read or written out.
type Length struct {
	r             io.Reader
	contentLength int64
	remaining     int64
	closed        bool
}

// NewLength returns a body reading exactly contentLength bytes from r.
func NewLength(r io.Reader, contentLength int64) (*Length, error) {
	if contentLength < 0 {
		return nil, fmt.Errorf("%w: negative content length %d", ErrOverflow, contentLength)
	}
	return &Length{
		r:             r,
		contentLength: contentLength,
		remaining:     contentLength,
	}, nil
}

// Kind implements Body.
func (b *Length) Kind() Kind { return KindLength }

// ContentLength implements Body.
func (b *Length) ContentLength() int64 { return b.contentLength }

// Closed implements Body.
func (b *Length) Closed() bool { return b.closed }

// Remaining returns the number of bytes not read yet.
func (b *Length) Remaining() int64 { return b.remaining }

// Read implements io.Reader. It never reads past the end of the body and
// reports ErrUnderflow when the underlying reader ends early.
func (b *Length) Read(p []byte) (int, error) {
	if b.remaining == 0 {
		b.closed = true
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	if b.remaining == 0 {
		b.closed = true
	}
	if errors.Is(err, io.EOF) {
		if b.remaining > 0 {
			return n, b.underflow()
		}
		err = nil
	}
	return n, err
}

// ReadAll implements Stream.
func (b *Length) ReadAll() ([]byte, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.remaining > MaxReadSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrOverflow, b.remaining, MaxReadSize)
	}
	buf := make([]byte, b.remaining)
	if _, err := io.ReadFull(b, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, b.underflow()
		}
		return nil, err
	}
	b.closed = true
	return buf, nil
}

// WriteTo implements Body by copying the remaining bytes to w.
func (b *Length) WriteTo(w io.Writer) (int64, error) {
	if b.closed {
		return 0, ErrClosed
	}
	n, err := io.CopyN(w, b.r, b.remaining)
	b.remaining -= n
	if errors.Is(err, io.EOF) {
		return n, b.underflow()
	}
	if err != nil {
		return n, err
	}
	b.closed = true
	return n, nil
}

func (b *Length) underflow() error {
	return fmt.Errorf("%w: %d < %d", ErrUnderflow, b.contentLength-b.remaining, b.contentLength)
}
