package codec

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-httpd/body"
)

func TestWriteResponse(t *testing.T) {
	t.Run("headers are sorted and bytes follow the preamble", func(t *testing.T) {
		var out bytes.Buffer
		resp := &Response{
			Status: 200,
			Reason: "OK",
			Header: Header{"foo": "17", "bar": "baz"},
			Body:   body.Bytes("hello"),
		}
		n, err := WriteResponse(&out, resp)
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK\r\nbar: baz\r\nfoo: 17\r\n\r\nhello", out.String())
		assert.Equal(t, int64(out.Len()), n)
	})

	t.Run("no body", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteResponse(&out, &Response{Status: 404, Reason: "Not Found", Header: Header{}})
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 404 Not Found\r\n\r\n", out.String())
	})

	t.Run("validated byte body", func(t *testing.T) {
		req := &Request{Method: MethodGet, URI: "/", Header: Header{}}
		resp := &Response{Status: 200, Reason: "OK", Body: body.Bytes("hello")}
		require.NoError(t, ValidateResponse(req, resp))

		var out bytes.Buffer
		_, err := WriteResponse(&out, resp)
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK\r\ncontent-length: 5\r\n\r\nhello", out.String())
	})

	t.Run("chunked source body", func(t *testing.T) {
		req := &Request{Method: MethodGet, URI: "/", Header: Header{}}
		resp := &Response{
			Status: 200,
			Reason: "OK",
			Body:   body.NewChunkedSource(body.Chunks(body.Chunk{Data: []byte("hello")}, body.Chunk{})),
		}
		require.NoError(t, ValidateResponse(req, resp))

		var out bytes.Buffer
		_, err := WriteResponse(&out, resp)
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 200 OK\r\ntransfer-encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n", out.String())
	})

	t.Run("length body streams from its reader", func(t *testing.T) {
		stream, err := body.NewLength(strings.NewReader("hello world"), 11)
		require.NoError(t, err)

		var out bytes.Buffer
		_, err = WriteResponse(&out, &Response{Status: 201, Reason: "Created", Header: Header{"content-length": "11"}, Body: stream})
		require.NoError(t, err)
		assert.Equal(t, "HTTP/1.1 201 Created\r\ncontent-length: 11\r\n\r\nhello world", out.String())
		assert.True(t, stream.Closed())
	})
}

func TestReadResponse(t *testing.T) {
	t.Run("length body", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"))
		resp, err := ReadResponse(r, MethodGet, nil)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, "OK", resp.Reason)

		data, err := resp.ReadBody()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("multi word reason", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("HTTP/1.1 404 Not Found\r\n\r\n"))
		resp, err := ReadResponse(r, MethodGet, nil)
		require.NoError(t, err)
		assert.Equal(t, "Not Found", resp.Reason)
		assert.Nil(t, resp.Body)
	})

	t.Run("chunked body", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"))
		resp, err := ReadResponse(r, MethodPost, nil)
		require.NoError(t, err)

		data, err := resp.ReadBody()
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
	})

	t.Run("head response has no body", func(t *testing.T) {
		r := bufio.NewReader(strings.NewReader("HTTP/1.1 200 OK\r\nContent-Length: 17\r\n\r\n"))
		resp, err := ReadResponse(r, MethodHead, nil)
		require.NoError(t, err)
		assert.Nil(t, resp.Body)
		assert.Equal(t, "17", resp.Header.Get("content-length"))
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name  string
			input string
		}{
			{name: "bad protocol", input: "HTTP/1.0 200 OK\r\n\r\n"},
			{name: "missing reason", input: "HTTP/1.1 200\r\n\r\n"},
			{name: "empty reason", input: "HTTP/1.1 200 \r\n\r\n"},
			{name: "status out of range", input: "HTTP/1.1 600 Nope\r\n\r\n"},
			{name: "non numeric status", input: "HTTP/1.1 2x0 OK\r\n\r\n"},
			{name: "both framing headers", input: "HTTP/1.1 200 OK\r\nContent-Length: 1\r\nTransfer-Encoding: chunked\r\n\r\n"},
			{name: "bad transfer-encoding", input: "HTTP/1.1 200 OK\r\nTransfer-Encoding: gzip\r\n\r\n"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ReadResponse(bufio.NewReader(strings.NewReader(tt.input)), MethodGet, nil)
				assert.ErrorIs(t, err, ErrMalformed)
			})
		}
	})

	t.Run("closed connection", func(t *testing.T) {
		_, err := ReadResponse(bufio.NewReader(strings.NewReader("")), MethodGet, nil)
		assert.ErrorIs(t, err, ErrEmptyPreamble)
	})
}

func TestWriteRequest(t *testing.T) {
	t.Run("adds content-length for byte bodies", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteRequest(&out, MethodPost, "/echo", nil, body.Bytes("hello"))
		require.NoError(t, err)
		assert.Equal(t, "POST /echo HTTP/1.1\r\ncontent-length: 5\r\n\r\nhello", out.String())
	})

	t.Run("no body", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteRequest(&out, MethodGet, "/", Header{"host": "example"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "GET / HTTP/1.1\r\nhost: example\r\n\r\n", out.String())
	})

	t.Run("parses back", func(t *testing.T) {
		var out bytes.Buffer
		src := body.NewChunkedSource(body.Chunks(body.Chunk{Data: []byte("abc")}, body.Chunk{}))
		_, err := WriteRequest(&out, MethodPut, "/items/1?x=y", nil, src)
		require.NoError(t, err)

		req, err := ReadRequest(bufio.NewReader(&out), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"items", "1"}, req.Path)
		assert.Equal(t, "x=y", req.Query)
		data, err := req.Body.ReadAll()
		require.NoError(t, err)
		assert.Equal(t, "abc", string(data))
	})

	t.Run("rejects contradicting framing headers", func(t *testing.T) {
		var out bytes.Buffer
		_, err := WriteRequest(&out, MethodPost, "/", Header{"content-length": "9"}, body.Bytes("hello"))
		assert.ErrorIs(t, err, ErrInvalidResponse)
		assert.Zero(t, out.Len())
	})
}
