package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cyberinferno/go-httpd/body"
)

// Response is what an application returns for a request.
type Response struct {
	Status int
	Reason string
	Header Header

	// Body is nil when the response has no body.
	Body body.Body
}

// ReadBody returns the whole response body, reading it when it is a stream.
func (resp *Response) ReadBody() ([]byte, error) {
	switch b := resp.Body.(type) {
	case nil:
		return nil, nil
	case body.Bytes:
		return b, nil
	case body.Stream:
		return b.ReadAll()
	default:
		return nil, fmt.Errorf("%w: %s body cannot be read", ErrInvalidResponse, b.Kind())
	}
}

// WriteResponse writes the status line, the headers in sorted order and the
// body to w. The response is expected to have passed ValidateResponse.
func WriteResponse(w io.Writer, resp *Response) (int64, error) {
	var sb strings.Builder
	sb.WriteString(protocol)
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(resp.Status))
	sb.WriteByte(' ')
	sb.WriteString(resp.Reason)
	sb.WriteString("\r\n")
	return writeMessage(w, &sb, resp.Header, resp.Body)
}

// WriteRequest writes a request preamble and body to w. Framing headers are
// added for b when missing.
func WriteRequest(w io.Writer, method, uri string, h Header, b body.Body) (int64, error) {
	if h == nil {
		h = Header{}
	}
	if b != nil {
		if err := frame(h, b); err != nil {
			return 0, err
		}
	}
	var sb strings.Builder
	sb.WriteString(method)
	sb.WriteByte(' ')
	sb.WriteString(uri)
	sb.WriteByte(' ')
	sb.WriteString(protocol)
	sb.WriteString("\r\n")
	return writeMessage(w, &sb, h, b)
}

func writeMessage(w io.Writer, sb *strings.Builder, h Header, b body.Body) (int64, error) {
	h.write(sb)
	sb.WriteString("\r\n")

	n, err := io.WriteString(w, sb.String())
	total := int64(n)
	if err != nil || b == nil {
		return total, err
	}
	m, err := b.WriteTo(w)
	return total + m, err
}

// ReadResponse reads one response from r. method is the method of the
// request it answers: responses to HEAD never carry a body.
func ReadResponse(r *bufio.Reader, method string, bodies body.Factory) (*Response, error) {
	if bodies == nil {
		bodies = body.Default
	}

	line, err := readFirstLine(r)
	if err != nil {
		return nil, err
	}
	status, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}
	header, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	resp := &Response{Status: status, Reason: reason, Header: header}
	if method == MethodHead {
		return resp, nil
	}

	cl, hasLength := header[HeaderContentLength]
	te, hasEncoding := header[HeaderTransferEncoding]
	switch {
	case hasLength && hasEncoding:
		return nil, malformed("cannot have both content-length and transfer-encoding headers")
	case hasLength:
		n, err := parseContentLength(cl)
		if err != nil {
			return nil, err
		}
		stream, err := bodies.NewLength(r, n)
		if err != nil {
			return nil, malformed("%w", err)
		}
		resp.Body = stream
	case hasEncoding:
		if te != chunked {
			return nil, malformed("bad transfer-encoding: %q", te)
		}
		resp.Body = bodies.NewChunked(r)
	}
	return resp, nil
}

func parseStatusLine(line string) (int, string, error) {
	proto, rest, ok := strings.Cut(line, " ")
	if !ok || proto != protocol {
		return 0, "", malformed("bad HTTP protocol in status line: %q", line)
	}
	code, reason, ok := strings.Cut(rest, " ")
	if !ok || len(code) != 3 || reason == "" {
		return 0, "", malformed("bad status line: %q", line)
	}
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 || status > 599 {
		return 0, "", malformed("bad status: %q", code)
	}
	return status, reason, nil
}
