// Command httpd runs the HTTP/1.1 server with a small built-in app, or
// probes a running server.
//
//	httpd [serve]
//	httpd probe [-ca file] [-cert file -key file] <addr> <path>
//
// serve is configured through the environment (or a .env file); see Config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/go-httpd/config"
	"github.com/cyberinferno/go-httpd/gate"
	"github.com/cyberinferno/go-httpd/httpserver"
	"github.com/cyberinferno/go-httpd/logger"
	"github.com/cyberinferno/go-httpd/tlsconf"
)

// Config is the serve configuration.
type Config struct {
	Addr string `env:"HTTPD_ADDR" envDefault:"127.0.0.1:8080"`

	Server httpserver.Config
	TLS    tlsconf.Config
	Log    logger.Config
	Gate   gate.Config
}

func main() {
	flag.Usage = usage
	flag.Parse()

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "", "serve":
		err = serve()
	case "probe":
		err = probe(os.Stdout, flag.Args()[1:])
	default:
		fmt.Fprintf(os.Stderr, "httpd: unknown command %q\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "httpd:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: httpd [serve]")
	fmt.Fprintln(os.Stderr, "       httpd probe [-ca file] [-cert file -key file] [-timeout d] <addr> <path>")
}

func serve() error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, allow, cleanup, err := build(cfg, log)
	if err != nil {
		log.Error("failed to start", logger.Err(err))
		return err
	}
	defer cleanup()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return srv.Serve(ctx)
	})
	if allow != nil {
		eg.Go(func() error {
			purgeOnHangup(ctx, allow, log)
			return nil
		})
	}
	return eg.Wait()
}

// build creates the server and, when configured, its gate. cleanup
// releases what build opened besides the server.
func build(cfg Config, log logger.Logger) (*httpserver.Server, *gate.AllowList, func(), error) {
	cleanup := func() {}
	opts := []httpserver.Option{
		httpserver.WithName("httpd"),
		httpserver.WithLogger(log),
		httpserver.WithConfig(cfg.Server),
	}

	var allow *gate.AllowList
	if cfg.Gate.Enabled() {
		gateOpts := []gate.Option{gate.WithLogger(log.With(logger.Field{Key: "component", Value: "gate"}))}
		if cfg.Gate.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: cfg.Gate.RedisAddr})
			cleanup = func() { _ = client.Close() }
			gateOpts = append(gateOpts, gate.WithCache(gate.NewRedisCache(client, cfg.Gate.RedisPrefix)))
		}
		var err error
		if allow, err = gate.New(cfg.Gate, gateOpts...); err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		opts = append(opts, httpserver.WithConnectHook(allow.OnConnect))
	}

	var (
		srv *httpserver.Server
		err error
	)
	if cfg.TLS.Enabled() {
		tlsConfig, terr := tlsconf.Build(cfg.TLS)
		if terr != nil {
			cleanup()
			return nil, nil, nil, terr
		}
		srv, err = httpserver.NewTLS(tlsConfig, cfg.Addr, demoApp{}, opts...)
	} else {
		srv, err = httpserver.New(cfg.Addr, demoApp{}, opts...)
	}
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return srv, allow, cleanup, nil
}

// purgeOnHangup drops the cached gate decisions on every SIGHUP.
func purgeOnHangup(ctx context.Context, allow *gate.AllowList, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := allow.Purge(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("failed to purge gate decisions", logger.Err(err))
				continue
			}
			log.Info("gate decisions purged")
		}
	}
}
