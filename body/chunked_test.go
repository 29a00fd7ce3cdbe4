package body

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestReadLine(t *testing.T) {
	t.Run("strips the terminator", func(t *testing.T) {
		line, err := ReadLine(reader("GET / HTTP/1.1\r\nrest"))
		require.NoError(t, err)
		assert.Equal(t, "GET / HTTP/1.1", string(line))
	})

	t.Run("empty input is eof", func(t *testing.T) {
		_, err := ReadLine(reader(""))
		assert.Equal(t, io.EOF, err)
	})

	t.Run("bare newline is rejected", func(t *testing.T) {
		_, err := ReadLine(reader("GET / HTTP/1.1\n"))
		assert.ErrorIs(t, err, ErrBadLine)
	})

	t.Run("unterminated line is rejected", func(t *testing.T) {
		_, err := ReadLine(reader("GET / HTTP/1.1"))
		assert.ErrorIs(t, err, ErrBadLine)
	})

	t.Run("long line is rejected", func(t *testing.T) {
		long := strings.Repeat("a", MaxLineSize) + "\r\n"
		_, err := ReadLine(bufio.NewReaderSize(strings.NewReader(long), 2*MaxLineSize))
		assert.ErrorIs(t, err, ErrLineTooLong)
	})

	t.Run("long line overflowing the buffer is rejected", func(t *testing.T) {
		long := strings.Repeat("a", 2*MaxLineSize) + "\r\n"
		_, err := ReadLine(bufio.NewReaderSize(strings.NewReader(long), MaxLineSize))
		assert.ErrorIs(t, err, ErrLineTooLong)
	})
}

func TestReadChunk(t *testing.T) {
	t.Run("plain chunk", func(t *testing.T) {
		ch, err := ReadChunk(reader("5\r\nhello\r\n"))
		require.NoError(t, err)
		assert.Nil(t, ch.Ext)
		assert.Equal(t, "hello", string(ch.Data))
	})

	t.Run("hex size with extension", func(t *testing.T) {
		ch, err := ReadChunk(reader("a;key=value\r\n0123456789\r\n"))
		require.NoError(t, err)
		require.NotNil(t, ch.Ext)
		assert.Equal(t, Extension{Key: "key", Value: "value"}, *ch.Ext)
		assert.Equal(t, "0123456789", string(ch.Data))
	})

	t.Run("final empty chunk", func(t *testing.T) {
		ch, err := ReadChunk(reader("0\r\n\r\n"))
		require.NoError(t, err)
		assert.Empty(t, ch.Data)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
			want  error
		}{
			{name: "non hex size", input: "xyz\r\nhello\r\n", want: ErrBadChunk},
			{name: "negative size", input: "-5\r\nhello\r\n", want: ErrBadChunk},
			{name: "empty size", input: "\r\nhello\r\n", want: ErrBadChunk},
			{name: "size too large", input: "1000001\r\n", want: ErrOverflow},
			{name: "extension without value", input: "5;key\r\nhello\r\n", want: ErrBadChunk},
			{name: "two extensions", input: "5;a=b;c=d\r\nhello\r\n", want: ErrBadChunk},
			{name: "bad data termination", input: "5\r\nhelloXY", want: ErrBadChunk},
			{name: "short data", input: "5\r\nhel", want: ErrUnderflow},
			{name: "missing size line", input: "", want: ErrUnderflow},
			{name: "bad size line termination", input: "5\nhello\r\n", want: ErrBadLine},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ReadChunk(reader(tt.input))
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})
}

func TestWriteChunk(t *testing.T) {
	t.Run("data chunk", func(t *testing.T) {
		var out bytes.Buffer
		n, err := WriteChunk(&out, Chunk{Data: []byte("hello")})
		require.NoError(t, err)
		assert.Equal(t, "5\r\nhello\r\n", out.String())
		assert.Equal(t, int64(out.Len()), n)
	})

	t.Run("chunk with extension", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteChunk(&out, Chunk{Ext: &Extension{Key: "k", Value: "v"}, Data: []byte("0123456789abcdef")})
		require.NoError(t, err)
		assert.Equal(t, "10;k=v\r\n0123456789abcdef\r\n", out.String())
	})

	t.Run("final chunk", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteChunk(&out, Chunk{})
		require.NoError(t, err)
		assert.Equal(t, "0\r\n\r\n", out.String())
	})

	t.Run("rejects bad extension", func(t *testing.T) {
		_, err := WriteChunk(io.Discard, Chunk{Ext: &Extension{Key: "a b", Value: "v"}})
		assert.ErrorIs(t, err, ErrBadChunk)
	})

	t.Run("rejects oversized data", func(t *testing.T) {
		_, err := WriteChunk(io.Discard, Chunk{Data: make([]byte, MaxChunkSize+1)})
		assert.ErrorIs(t, err, ErrOverflow)
	})

	t.Run("round trips through read chunk", func(t *testing.T) {
		var out bytes.Buffer
		want := Chunk{Ext: &Extension{Key: "name", Value: "part1"}, Data: []byte("payload")}
		_, err := WriteChunk(&out, want)
		require.NoError(t, err)

		got, err := ReadChunk(bufio.NewReader(&out))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestChunked(t *testing.T) {
	const wire = "5\r\nhello\r\n6;k=v\r\n world\r\n0\r\n\r\nGET / HTTP/1.1\r\n"

	t.Run("read chunk walks the body", func(t *testing.T) {
		r := reader(wire)
		c := NewChunked(r)
		assert.Equal(t, KindChunked, c.Kind())
		assert.Equal(t, int64(-1), c.ContentLength())

		ch, err := c.ReadChunk()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(ch.Data))
		assert.False(t, c.Closed())

		ch, err = c.ReadChunk()
		require.NoError(t, err)
		assert.Equal(t, " world", string(ch.Data))
		assert.Equal(t, "k", ch.Ext.Key)

		ch, err = c.ReadChunk()
		require.NoError(t, err)
		assert.Empty(t, ch.Data)
		assert.True(t, c.Closed())

		_, err = c.ReadChunk()
		assert.ErrorIs(t, err, ErrClosed)

		line, err := ReadLine(r)
		require.NoError(t, err)
		assert.Equal(t, "GET / HTTP/1.1", string(line))
	})

	t.Run("read concatenates chunk data", func(t *testing.T) {
		c := NewChunked(reader(wire))
		got, err := io.ReadAll(c)
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(got))
		assert.True(t, c.Closed())
	})

	t.Run("small reads keep leftovers for read chunk", func(t *testing.T) {
		c := NewChunked(reader(wire))
		buf := make([]byte, 2)
		_, err := io.ReadFull(c, buf)
		require.NoError(t, err)
		assert.Equal(t, "he", string(buf))

		ch, err := c.ReadChunk()
		require.NoError(t, err)
		assert.Equal(t, "llo", string(ch.Data))
	})

	t.Run("read all", func(t *testing.T) {
		c := NewChunked(reader(wire))
		got, err := c.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "hello world", string(got))
		assert.True(t, c.Closed())

		_, err = c.ReadAll()
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("write to re-encodes chunks", func(t *testing.T) {
		c := NewChunked(reader(wire))
		var out bytes.Buffer
		n, err := c.WriteTo(&out)
		require.NoError(t, err)
		assert.Equal(t, "5\r\nhello\r\n6;k=v\r\n world\r\n0\r\n\r\n", out.String())
		assert.Equal(t, int64(out.Len()), n)
		assert.True(t, c.Closed())
	})

	t.Run("truncated body fails", func(t *testing.T) {
		c := NewChunked(reader("5\r\nhello\r\n"))
		_, err := c.ReadAll()
		assert.ErrorIs(t, err, ErrUnderflow)
		assert.False(t, c.Closed())
	})

	t.Run("wraps plain readers", func(t *testing.T) {
		c := NewChunked(strings.NewReader("3\r\nabc\r\n0\r\n\r\n"))
		got, err := c.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "abc", string(got))
	})
}

func TestChunkedSource(t *testing.T) {
	t.Run("writes every chunk", func(t *testing.T) {
		s := NewChunkedSource(Chunks(
			Chunk{Data: []byte("hello")},
			Chunk{Data: []byte(" world")},
			Chunk{},
		))
		assert.Equal(t, KindChunked, s.Kind())
		assert.Equal(t, int64(-1), s.ContentLength())

		var out bytes.Buffer
		n, err := s.WriteTo(&out)
		require.NoError(t, err)
		assert.Equal(t, "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n", out.String())
		assert.Equal(t, int64(out.Len()), n)
		assert.True(t, s.Closed())

		_, err = s.WriteTo(&out)
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("final chunk must be empty", func(t *testing.T) {
		s := NewChunkedSource(Chunks(Chunk{Data: []byte("hello")}))
		_, err := s.WriteTo(io.Discard)
		assert.ErrorIs(t, err, ErrBadChunk)
		assert.False(t, s.Closed())
	})

	t.Run("no data after the empty chunk", func(t *testing.T) {
		s := NewChunkedSource(Chunks(Chunk{}, Chunk{Data: []byte("late")}))
		_, err := s.WriteTo(io.Discard)
		assert.ErrorIs(t, err, ErrBadChunk)
	})

	t.Run("empty source is rejected", func(t *testing.T) {
		s := NewChunkedSource(Chunks())
		_, err := s.WriteTo(io.Discard)
		assert.ErrorIs(t, err, ErrBadChunk)
	})

	t.Run("source errors are returned", func(t *testing.T) {
		boom := assert.AnError
		s := NewChunkedSource(ChunkSourceFunc(func() (Chunk, error) {
			return Chunk{}, boom
		}))
		_, err := s.WriteTo(io.Discard)
		assert.ErrorIs(t, err, boom)
	})
}
