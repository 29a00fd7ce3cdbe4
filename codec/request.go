// Package codec parses and serializes HTTP/1.1 messages and validates the
// responses produced by an application before they reach the wire.
package codec

import (
	"bufio"
	"io"
	"strings"

	"github.com/cyberinferno/go-httpd/body"
)

const (
	MethodGet    = "GET"
	MethodPut    = "PUT"
	MethodPost   = "POST"
	MethodHead   = "HEAD"
	MethodDelete = "DELETE"
)

// Request is a parsed request preamble plus its body stream.
type Request struct {
	Method string
	URI    string

	// Path holds the URI path split on "/". The root path is an empty
	// slice; a trailing slash yields a trailing empty segment.
	Path []string

	// Query is the text after the first "?". HasQuery tells an empty query
	// ("/foo?") apart from no query at all ("/foo").
	Query    string
	HasQuery bool

	Header Header

	// Body is nil when the request carries no body. The application must
	// consume it fully before returning.
	Body body.Stream
}

// ReadRequest reads one request from r. Request bodies are built with
// bodies and read from r, so r must not be read again before the body has
// been consumed.
//
// Parameters:
//   - r: Buffered connection reader, shared by every request on the connection
//   - bodies: Builds the request body; nil selects body.Default
//
// Returns:
//   - The parsed Request, with a nil Body when the request has none
//   - ErrEmptyPreamble when r is at EOF before the first byte, or an error
//     wrapping ErrMalformed for any framing violation
func ReadRequest(r *bufio.Reader, bodies body.Factory) (*Request, error) {
	if bodies == nil {
		bodies = body.Default
	}

	line, err := readFirstLine(r)
	if err != nil {
		return nil, err
	}
	method, uri, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	req := &Request{Method: method, URI: uri, Header: header}
	if err := req.parseURI(); err != nil {
		return nil, err
	}
	if err := req.attachBody(r, bodies); err != nil {
		return nil, err
	}
	return req, nil
}

func parseRequestLine(line string) (method, uri string, err error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return "", "", malformed("bad request line: %q", line)
	}
	method, uri, proto := parts[0], parts[1], parts[2]
	switch method {
	case MethodGet, MethodPut, MethodPost, MethodHead, MethodDelete:
	default:
		return "", "", malformed("bad HTTP method: %q", method)
	}
	if proto != protocol {
		return "", "", malformed("bad HTTP protocol: %q", proto)
	}
	if uri == "" {
		return "", "", malformed("empty request uri")
	}
	return method, uri, nil
}

func (req *Request) parseURI() error {
	path, query, hasQuery := strings.Cut(req.URI, "?")
	if hasQuery && strings.Contains(query, "?") {
		return malformed("bad request uri: %q", req.URI)
	}
	if !strings.HasPrefix(path, "/") || strings.Contains(path, "//") {
		return malformed("bad request path: %q", path)
	}
	req.Path = splitPath(path)
	req.Query = query
	req.HasQuery = hasQuery
	return nil
}

func splitPath(path string) []string {
	if path == "/" {
		return []string{}
	}
	return strings.Split(path[1:], "/")
}

func (req *Request) attachBody(r io.Reader, bodies body.Factory) error {
	cl, hasLength := req.Header[HeaderContentLength]
	te, hasEncoding := req.Header[HeaderTransferEncoding]

	switch {
	case hasLength && hasEncoding:
		return malformed("cannot have both content-length and transfer-encoding headers")
	case hasLength:
		n, err := parseContentLength(cl)
		if err != nil {
			return err
		}
		if n == 0 && (req.Method == MethodGet || req.Method == MethodHead) {
			delete(req.Header, HeaderContentLength)
			return nil
		}
		if req.Body, err = bodies.NewLength(r, n); err != nil {
			return malformed("%w", err)
		}
	case hasEncoding:
		if te != chunked {
			return malformed("bad transfer-encoding: %q", te)
		}
		req.Body = bodies.NewChunked(r)
	default:
		return nil
	}

	if req.Method != MethodPost && req.Method != MethodPut {
		return malformed("%s request with a body", req.Method)
	}
	return nil
}
