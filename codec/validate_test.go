package codec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-httpd/body"
)

func getRequest() *Request {
	return &Request{Method: MethodGet, URI: "/", Path: []string{}, Header: Header{}}
}

func headRequest() *Request {
	return &Request{Method: MethodHead, URI: "/", Path: []string{}, Header: Header{}}
}

func TestValidateResponse_requestBody(t *testing.T) {
	t.Run("unconsumed request body", func(t *testing.T) {
		stream, err := body.NewLength(strings.NewReader("hello"), 5)
		require.NoError(t, err)
		req := &Request{Method: MethodPost, URI: "/echo", Header: Header{}, Body: stream}

		err = ValidateResponse(req, &Response{Status: 200, Reason: "OK"})
		assert.ErrorIs(t, err, ErrUnconsumedBody)
		assert.Contains(t, err.Error(), "POST /echo")
	})

	t.Run("consumed request body", func(t *testing.T) {
		stream, err := body.NewLength(strings.NewReader("hello"), 5)
		require.NoError(t, err)
		_, err = stream.ReadAll()
		require.NoError(t, err)
		req := &Request{Method: MethodPost, URI: "/echo", Header: Header{}, Body: stream}

		assert.NoError(t, ValidateResponse(req, &Response{Status: 200, Reason: "OK"}))
	})
}

func TestValidateResponse_status(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		ok   bool
	}{
		{name: "nil response", resp: nil},
		{name: "status below range", resp: &Response{Status: 99, Reason: "Low"}},
		{name: "status above range", resp: &Response{Status: 600, Reason: "High"}},
		{name: "empty reason", resp: &Response{Status: 200}},
		{name: "reason with newline", resp: &Response{Status: 200, Reason: "O\r\nK"}},
		{name: "uppercase header name", resp: &Response{Status: 200, Reason: "OK", Header: Header{"Content-Type": "x"}}},
		{name: "bad header value", resp: &Response{Status: 200, Reason: "OK", Header: Header{"x": "a\nb"}}},
		{name: "lowest status", resp: &Response{Status: 100, Reason: "Continue"}, ok: true},
		{name: "highest status", resp: &Response{Status: 599, Reason: "Whatever"}, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse(getRequest(), tt.resp)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}

func TestValidateResponse_head(t *testing.T) {
	t.Run("empty body is rejected", func(t *testing.T) {
		err := ValidateResponse(headRequest(), &Response{Status: 200, Reason: "OK", Header: Header{}, Body: body.Bytes("")})
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("missing framing header is rejected", func(t *testing.T) {
		err := ValidateResponse(headRequest(), &Response{Status: 200, Reason: "OK", Header: Header{}})
		assert.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("content-length is accepted", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"content-length": "17"}}
		require.NoError(t, ValidateResponse(headRequest(), resp))
		assert.Equal(t, Header{"content-length": "17"}, resp.Header)
	})

	t.Run("chunked transfer-encoding is accepted", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"transfer-encoding": "chunked"}}
		assert.NoError(t, ValidateResponse(headRequest(), resp))
	})

	t.Run("other transfer-encoding is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"transfer-encoding": "gzip"}}
		assert.ErrorIs(t, ValidateResponse(headRequest(), resp), ErrInvalidResponse)
	})

	t.Run("both framing headers are rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"content-length": "1", "transfer-encoding": "chunked"}}
		assert.ErrorIs(t, ValidateResponse(headRequest(), resp), ErrInvalidResponse)
	})
}

func TestValidateResponse_framing(t *testing.T) {
	t.Run("bytes body gets content-length", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Body: body.Bytes("hello")}
		require.NoError(t, ValidateResponse(getRequest(), resp))
		assert.Equal(t, Header{"content-length": "5"}, resp.Header)
	})

	t.Run("matching content-length is kept", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"content-length": "5"}, Body: body.Bytes("hello")}
		assert.NoError(t, ValidateResponse(getRequest(), resp))
	})

	t.Run("mismatched content-length is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"content-length": "17"}, Body: body.Bytes("hello")}
		err := ValidateResponse(getRequest(), resp)
		assert.ErrorIs(t, err, ErrInvalidResponse)
		assert.Contains(t, err.Error(), "body length is 5, but content-length is 17")
	})

	t.Run("bytes body with transfer-encoding is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"transfer-encoding": "chunked"}, Body: body.Bytes("hello")}
		assert.ErrorIs(t, ValidateResponse(getRequest(), resp), ErrInvalidResponse)
	})

	t.Run("length body gets content-length", func(t *testing.T) {
		stream, err := body.NewLength(strings.NewReader("hello world"), 11)
		require.NoError(t, err)
		resp := &Response{Status: 200, Reason: "OK", Body: stream}
		require.NoError(t, ValidateResponse(getRequest(), resp))
		assert.Equal(t, "11", resp.Header.Get("content-length"))
	})

	t.Run("chunked body gets transfer-encoding", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Body: body.NewChunkedSource(body.Chunks(body.Chunk{}))}
		require.NoError(t, ValidateResponse(getRequest(), resp))
		assert.Equal(t, Header{"transfer-encoding": "chunked"}, resp.Header)
	})

	t.Run("chunked body with content-length is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"content-length": "5"}, Body: body.NewChunkedSource(body.Chunks(body.Chunk{}))}
		assert.ErrorIs(t, ValidateResponse(getRequest(), resp), ErrInvalidResponse)
	})

	t.Run("chunked body with other transfer-encoding is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Header: Header{"transfer-encoding": "gzip"}, Body: body.NewChunkedSource(body.Chunks(body.Chunk{}))}
		assert.ErrorIs(t, ValidateResponse(getRequest(), resp), ErrInvalidResponse)
	})

	t.Run("no body adds nothing", func(t *testing.T) {
		resp := &Response{Status: 204, Reason: "No Content"}
		require.NoError(t, ValidateResponse(getRequest(), resp))
		assert.Empty(t, resp.Header)
	})

	t.Run("unknown body kind is rejected", func(t *testing.T) {
		resp := &Response{Status: 200, Reason: "OK", Body: oddBody{}}
		assert.ErrorIs(t, ValidateResponse(getRequest(), resp), ErrInvalidResponse)
	})
}

func TestValidateResponse_idempotent(t *testing.T) {
	req := getRequest()
	resp := &Response{Status: 200, Reason: "OK", Header: Header{"x-id": "1"}, Body: body.Bytes("hello")}

	require.NoError(t, ValidateResponse(req, resp))
	first := resp.Header.Clone()
	require.NoError(t, ValidateResponse(req, resp))
	assert.Equal(t, first, resp.Header)
}

type oddBody struct{ body.Bytes }

func (oddBody) Kind() body.Kind { return body.Kind(99) }
