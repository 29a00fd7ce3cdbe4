package main

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cyberinferno/go-httpd/codec"
	"github.com/cyberinferno/go-httpd/httpserver"
	"github.com/cyberinferno/go-httpd/tlsconf"
)

var errUsage = errors.New("usage: httpd probe [flags] <addr> <path>")

type probeOptions struct {
	addr     string
	path     string
	caFile   string
	certFile string
	keyFile  string
	timeout  time.Duration
}

// probe sends one GET request and prints the response status line and body.
func probe(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	var opts probeOptions
	fs.StringVar(&opts.caFile, "ca", "", "CA file; enables TLS")
	fs.StringVar(&opts.certFile, "cert", "", "client certificate file")
	fs.StringVar(&opts.keyFile, "key", "", "client key file")
	fs.DurationVar(&opts.timeout, "timeout", 5*time.Second, "connect and read timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	opts.addr, opts.path = fs.Arg(0), fs.Arg(1)

	resp, data, err := doProbe(opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d %s\n", resp.Status, resp.Reason)
	if len(data) > 0 {
		_, err = w.Write(data)
	}
	return err
}

func doProbe(opts probeOptions) (*codec.Response, []byte, error) {
	addr, err := httpserver.ParseAddress(opts.addr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := net.DialTimeout(addr.Network, addr.Addr, opts.timeout)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()

	if opts.caFile != "" {
		tlsConfig, err := probeTLSConfig(opts, addr)
		if err != nil {
			return nil, nil, err
		}
		conn = tls.Client(conn, tlsConfig)
	}
	if err := conn.SetDeadline(time.Now().Add(opts.timeout)); err != nil {
		return nil, nil, err
	}

	if _, err := codec.WriteRequest(conn, codec.MethodGet, opts.path, nil, nil); err != nil {
		return nil, nil, err
	}
	resp, err := codec.ReadResponse(bufio.NewReader(conn), codec.MethodGet, nil)
	if err != nil {
		return nil, nil, err
	}
	data, err := resp.ReadBody()
	if err != nil {
		return nil, nil, err
	}
	return resp, data, nil
}

func probeTLSConfig(opts probeOptions, addr httpserver.Address) (*tls.Config, error) {
	pem, err := os.ReadFile(opts.caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", opts.caFile)
	}

	host, _, err := net.SplitHostPort(addr.Addr)
	if err != nil {
		host = "localhost"
	}
	cfg := &tls.Config{
		MinVersion:       tlsconf.Version,
		MaxVersion:       tlsconf.Version,
		CipherSuites:     tlsconf.CipherSuites,
		CurvePreferences: []tls.CurveID{tlsconf.Curve},
		RootCAs:          pool,
		ServerName:       host,
	}
	if opts.certFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.certFile, opts.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
