package httpserver

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"runtime/debug"

	"github.com/cyberinferno/go-httpd/body"
	"github.com/cyberinferno/go-httpd/codec"
	"github.com/cyberinferno/go-httpd/logger"
)

// serveConn owns raw until it returns. Every exit path releases the slot
// taken by admit and shuts the connection down.
func (s *Server) serveConn(raw net.Conn) {
	id := s.conns.add(raw)
	session := newSession(id, raw.RemoteAddr())
	log := s.logger.With(
		logger.Field{Key: "conn_id", Value: id},
		logger.Field{Key: "client", Value: remote(raw)},
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("connection worker panic",
				logger.Field{Key: "panic", Value: fmt.Sprint(r)},
				logger.Field{Key: "stack", Value: string(debug.Stack())},
			)
		}
		s.conns.remove(id)
		shutdown(raw)
		s.slots.Release(1)
		s.workers.Done()
		log.Debug("connection closed", logger.Field{Key: "requests", Value: session.Requests})
	}()

	if s.stopped.Load() {
		return
	}

	var conn net.Conn = &deadlineConn{Conn: raw, timeout: s.cfg.Timeout}
	if s.tlsConfig != nil {
		tlsConn := tls.Server(conn, s.tlsConfig)
		if err := tlsConn.Handshake(); err != nil {
			log.Info("TLS handshake failed", logger.Err(err))
			return
		}
		session.TLS = tlsInfo(tlsConn.ConnectionState())
		conn = tlsConn
	}

	if s.onConnect != nil && !s.onConnect(session, conn) {
		log.Info("connection rejected by on_connect hook")
		return
	}
	log.Debug("connection accepted")

	if err := s.serveRequests(session, conn); err != nil {
		logConnError(log, err)
	}
}

// serveRequests handles requests in order until the persistence policy,
// MaxRequests or an error ends the connection.
func (s *Server) serveRequests(session *Session, conn net.Conn) error {
	r := bufio.NewReaderSize(conn, body.IOSize)
	w := bufio.NewWriterSize(conn, body.IOSize)

	for session.Requests < s.cfg.MaxRequests {
		status, err := s.handleRequest(session, r, w)
		if err != nil {
			return err
		}
		if !s.cfg.KeepAlive(status) {
			return nil
		}
	}
	return nil
}

func (s *Server) handleRequest(session *Session, r *bufio.Reader, w *bufio.Writer) (int, error) {
	req, err := codec.ReadRequest(r, s.bodies)
	if err != nil {
		return 0, err
	}
	session.Requests++

	resp, err := s.app.ServeHTTP1(session, req, s.bodies)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", ErrApplication, req.Method, req.URI, err)
	}
	if err := codec.ValidateResponse(req, resp); err != nil {
		return 0, err
	}
	if _, err := codec.WriteResponse(w, resp); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// logConnError logs err at a severity matching who caused it.
func logConnError(log logger.Logger, err error) {
	switch {
	case errors.Is(err, codec.ErrEmptyPreamble):
		log.Debug("client closed connection")
	case errors.Is(err, ErrApplication),
		errors.Is(err, codec.ErrUnconsumedBody),
		errors.Is(err, codec.ErrInvalidResponse):
		log.Error("application error", logger.Err(err))
	case errors.Is(err, codec.ErrMalformed),
		errors.Is(err, body.ErrBadChunk),
		errors.Is(err, body.ErrBadLine),
		errors.Is(err, body.ErrLineTooLong),
		errors.Is(err, body.ErrOverflow):
		log.Warn("bad request", logger.Err(err))
	case isTimeout(err):
		log.Info("connection timed out", logger.Err(err))
	default:
		log.Info("connection error", logger.Err(err))
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
