package codec

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/cyberinferno/go-httpd/body"
)

// ValidateResponse checks resp against req and fills in missing framing
// headers. It must be called after the application returns and before the
// response is written. Calling it again on the same pair is a no-op.
//
// Parameters:
//   - req: The request resp answers; its body must be fully consumed
//   - resp: The application's response; its Header may be filled in
//
// Returns:
//   - nil when resp can be written as is
//   - An error wrapping ErrUnconsumedBody when the request body was not
//     fully read, or ErrInvalidResponse when resp cannot be framed correctly
func ValidateResponse(req *Request, resp *Response) error {
	if req.Body != nil && !req.Body.Closed() {
		return fmt.Errorf("%w: %s %s", ErrUnconsumedBody, req.Method, req.URI)
	}
	if resp == nil {
		return invalid("nil response")
	}
	if resp.Status < 100 || resp.Status > 599 {
		return invalid("need 100 <= status <= 599; got %d", resp.Status)
	}
	if resp.Reason == "" || !printable([]byte(resp.Reason)) {
		return invalid("bad reason: %q", resp.Reason)
	}
	if resp.Header == nil {
		resp.Header = Header{}
	}
	if err := checkHeader(resp.Header); err != nil {
		return err
	}

	if req.Method == MethodHead {
		return checkHead(resp)
	}
	if resp.Body == nil {
		return nil
	}
	return frame(resp.Header, resp.Body)
}

func checkHeader(h Header) error {
	for k, v := range h {
		if k != strings.ToLower(k) {
			return invalid("header name is not lowercase: %q", k)
		}
		if !httpguts.ValidHeaderFieldName(k) || !httpguts.ValidHeaderFieldValue(v) {
			return invalid("bad header: %q: %q", k, v)
		}
	}
	return nil
}

// checkHead enforces that a response to HEAD has no body and declares its
// framing through exactly one of content-length or transfer-encoding.
func checkHead(resp *Response) error {
	if resp.Body != nil {
		return invalid("response to HEAD request must have no body; got %s body", resp.Body.Kind())
	}
	_, hasLength := resp.Header[HeaderContentLength]
	te, hasEncoding := resp.Header[HeaderTransferEncoding]
	switch {
	case hasLength && !hasEncoding:
		return nil
	case hasEncoding && !hasLength && te == chunked:
		return nil
	default:
		return invalid("response to HEAD request must include content-length or transfer-encoding: chunked")
	}
}

// frame sets the framing header b needs and rejects headers that
// contradict it.
func frame(h Header, b body.Body) error {
	switch k := b.Kind(); k {
	case body.KindBytes, body.KindLength:
		if _, ok := h[HeaderTransferEncoding]; ok {
			return invalid("%s body cannot have a transfer-encoding header", k)
		}
		want := strconv.FormatInt(b.ContentLength(), 10)
		if cl, ok := h[HeaderContentLength]; ok && cl != want {
			return invalid("body length is %s, but content-length is %s", want, cl)
		}
		h[HeaderContentLength] = want
	case body.KindChunked:
		if _, ok := h[HeaderContentLength]; ok {
			return invalid("chunked body cannot have a content-length header")
		}
		if te, ok := h[HeaderTransferEncoding]; ok && te != chunked {
			return invalid("transfer-encoding must be %q; got %q", chunked, te)
		}
		h[HeaderTransferEncoding] = chunked
	default:
		return invalid("unknown body kind %d", k)
	}
	return nil
}
