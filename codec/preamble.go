package codec

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/cyberinferno/go-httpd/body"
)

const (
	// MaxHeaderCount is the most header lines accepted in one preamble.
	MaxHeaderCount = 20

	// MaxContentLength is the largest content-length accepted (2^53).
	MaxContentLength = 1 << 53

	protocol = "HTTP/1.1"
)

// readFirstLine reads the request or status line of a new message.
func readFirstLine(r *bufio.Reader) (string, error) {
	line, err := body.ReadLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrEmptyPreamble
		}
		return "", malformed("%w", err)
	}
	if len(line) == 0 {
		return "", malformed("first preamble line is empty")
	}
	if !printable(line) {
		return "", malformed("bad bytes in first line: %q", line)
	}
	return string(line), nil
}

// readHeader reads header lines up to the empty line closing the preamble.
func readHeader(r *bufio.Reader) (Header, error) {
	h := Header{}
	for count := 0; ; count++ {
		line, err := body.ReadLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, malformed("unexpected EOF in preamble")
			}
			return nil, malformed("%w", err)
		}
		if len(line) == 0 {
			return h, nil
		}
		if count == MaxHeaderCount {
			return nil, malformed("too many headers (> %d)", MaxHeaderCount)
		}

		name, value, ok := strings.Cut(string(line), ": ")
		if !ok || name == "" {
			return nil, malformed("bad header line: %q", line)
		}
		if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
			return nil, malformed("bad header line: %q", line)
		}

		key := strings.ToLower(name)
		if key == HeaderContentLength || key == HeaderTransferEncoding {
			if _, dup := h[key]; dup {
				return nil, malformed("duplicate header: %q", key)
			}
		}
		h[key] = value
	}
}

// parseContentLength accepts only plain decimal digits up to MaxContentLength.
func parseContentLength(v string) (int64, error) {
	if v == "" || len(v) > 16 {
		return 0, malformed("bad content-length: %q", v)
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, malformed("bad content-length: %q", v)
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n > MaxContentLength {
		return 0, malformed("content-length too large: %q", v)
	}
	return n, nil
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < ' ' || c > '~' {
			return false
		}
	}
	return true
}
