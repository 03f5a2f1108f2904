// File: cmd/hioload-httpd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// hioload-httpd serves static files over HTTP/1.1 from one epoll reactor
// and a fixed pool of worker threads.
//
//	hioload-httpd [--config file] [--log-level LEVEL] <port>

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/internal/logger"
	"github.com/momentics/hioload-httpd/server"
	"github.com/spf13/pflag"
)

// errUsage marks command line mistakes; the usage text has been printed.
var errUsage = errors.New("usage")

type options struct {
	configPath  string
	logLevel    string
	writeConfig string
	force       bool
	port        int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	if opts.writeConfig != "" {
		if err := control.WriteDefault(opts.writeConfig, opts.force); err != nil {
			fmt.Fprintf(stderr, "write config: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "default configuration written to %s\n", opts.writeConfig)
		return 0
	}

	if err := serve(opts); err != nil {
		fmt.Fprintf(stderr, "hioload-httpd: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("hioload-httpd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML configuration file")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	fs.StringVar(&opts.writeConfig, "write-config", "", "write the default configuration to this path and exit")
	fs.BoolVar(&opts.force, "force", false, "overwrite an existing file with --write-config")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: hioload-httpd [flags] <port>\n\nflags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.writeConfig != "" {
		return opts, nil
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errUsage
	}
	port, err := strconv.Atoi(fs.Arg(0))
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(stderr, "invalid port %q\n", fs.Arg(0))
		fs.Usage()
		return opts, errUsage
	}
	opts.port = port
	return opts, nil
}

func serve(opts options) error {
	cfg, err := control.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.Server.Port = opts.port
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := control.Validate(cfg); err != nil {
		return err
	}

	closer, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer closer.Close()
	log := logger.Default()

	// Writes to peers that went away must fail with EPIPE, not kill us.
	signal.Ignore(syscall.SIGPIPE)

	srv, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	if opts.configPath != "" {
		store := control.NewStore(cfg)
		store.OnReload(func(_, next *control.Config) {
			next.Server.Port = opts.port
			if opts.logLevel != "" {
				next.Logging.Level = opts.logLevel
			}
		})
		store.OnReload(srv.Reload)
		if err := control.Watch(opts.configPath, store, log); err != nil {
			log.Warn("config hot reload disabled", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
