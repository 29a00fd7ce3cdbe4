package body

import (
	"errors"
	"fmt"
	"io"
)

// ChunkSource yields the chunks of an application-generated body. It
// returns io.EOF once the final empty chunk has been produced.
type ChunkSource interface {
	NextChunk() (Chunk, error)
}

// ChunkSourceFunc adapts a function to ChunkSource.
type ChunkSourceFunc func() (Chunk, error)

// NextChunk implements ChunkSource.
func (f ChunkSourceFunc) NextChunk() (Chunk, error) { return f() }

// Chunks returns a source yielding the given chunks in order.
func Chunks(chunks ...Chunk) ChunkSource {
	i := 0
	return ChunkSourceFunc(func() (Chunk, error) {
		if i >= len(chunks) {
			return Chunk{}, io.EOF
		}
		ch := chunks[i]
		i++
		return ch, nil
	})
}

// ChunkedSource is a chunked body written from a ChunkSource. The source
// must end with exactly one empty chunk.
type ChunkedSource struct {
	src    ChunkSource
	closed bool
}

// NewChunkedSource returns a chunked body backed by src.
func NewChunkedSource(src ChunkSource) *ChunkedSource {
	return &ChunkedSource{src: src}
}

// Kind implements Body.
func (s *ChunkedSource) Kind() Kind { return KindChunked }

// ContentLength implements Body.
func (s *ChunkedSource) ContentLength() int64 { return -1 }

// Closed implements Body.
func (s *ChunkedSource) Closed() bool { return s.closed }

// WriteTo implements Body.
func (s *ChunkedSource) WriteTo(w io.Writer) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	var (
		total int64
		ended bool
	)
	for {
		ch, err := s.src.NextChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		if ended {
			return total, fmt.Errorf("%w: non-empty chunk data after empty", ErrBadChunk)
		}
		n, err := WriteChunk(w, ch)
		total += n
		if err != nil {
			return total, err
		}
		ended = len(ch.Data) == 0
	}
	if !ended {
		return total, fmt.Errorf("%w: final chunk data was not empty", ErrBadChunk)
	}
	s.closed = true
	return total, nil
}
