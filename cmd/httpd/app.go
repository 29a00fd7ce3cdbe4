package main

import (
	"io"
	"strconv"

	"github.com/cyberinferno/go-httpd/body"
	"github.com/cyberinferno/go-httpd/codec"
	"github.com/cyberinferno/go-httpd/httpserver"
)

// demoApp is the built-in application:
//
//	/status/{code}/{reason}  responds with that status line
//	/echo                    returns the POST or PUT request body
//
// Everything else is 404. HEAD is answered like GET without the body.
type demoApp struct{}

// ServeHTTP1 implements httpserver.App.
func (demoApp) ServeHTTP1(s *httpserver.Session, req *codec.Request, bodies body.Factory) (*codec.Response, error) {
	resp, err := route(req)
	if err != nil {
		return nil, err
	}
	if req.Body != nil && !req.Body.Closed() {
		if _, err := req.Body.WriteTo(io.Discard); err != nil {
			return nil, err
		}
	}
	if req.Method == codec.MethodHead {
		return headOf(resp), nil
	}
	return resp, nil
}

func route(req *codec.Request) (*codec.Response, error) {
	switch {
	case len(req.Path) == 3 && req.Path[0] == "status":
		code, err := strconv.Atoi(req.Path[1])
		if err != nil || code < 100 || code > 599 || req.Path[2] == "" {
			return notFound(), nil
		}
		return &codec.Response{Status: code, Reason: req.Path[2]}, nil

	case len(req.Path) == 1 && req.Path[0] == "echo":
		if req.Method != codec.MethodPost && req.Method != codec.MethodPut {
			return &codec.Response{
				Status: 405,
				Reason: "Method Not Allowed",
				Header: codec.Header{"allow": "POST, PUT"},
			}, nil
		}
		data := []byte{}
		if req.Body != nil {
			var err error
			if data, err = req.Body.ReadAll(); err != nil {
				return nil, err
			}
		}
		h := codec.Header{}
		if ct, ok := req.Header.Lookup("content-type"); ok {
			h.Set("content-type", ct)
		}
		return &codec.Response{Status: 200, Reason: "OK", Header: h, Body: body.Bytes(data)}, nil
	}
	return notFound(), nil
}

func notFound() *codec.Response {
	return &codec.Response{Status: 404, Reason: "Not Found"}
}

// headOf drops the body of resp, keeping its length in content-length.
func headOf(resp *codec.Response) *codec.Response {
	n := 0
	if b, ok := resp.Body.(body.Bytes); ok {
		n = len(b)
	}
	h := resp.Header.Clone()
	h.Del(codec.HeaderTransferEncoding)
	h.Set(codec.HeaderContentLength, strconv.Itoa(n))
	return &codec.Response{Status: resp.Status, Reason: resp.Reason, Header: h}
}
