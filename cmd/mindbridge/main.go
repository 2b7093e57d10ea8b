// SPDX-License-Identifier: GPL-3.0-or-later

// Command mindbridge pushes Mindwave Mobile 2 headset data to a websocket
// stream and/or a CSV file.
//
// The data comes from the ThinkGear Connector socket (default) or, with
// -device-source, directly from the headset serial device.
//
// Usage:
//
//	mindbridge [-host localhost] [-port 13854] [-output dir/or/file.csv] [-no-stream]
//	mindbridge -device-source -device /dev/rfcomm0 [-headset-id 625f] [-no-open-serial]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bassosimone/mindbridge"
	"github.com/bassosimone/mindbridge/outlet"
	"github.com/bassosimone/mindbridge/thinkgear"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

// run executes the command and returns the exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "mindbridge: %s\n", err.Error())
		return exitUsage
	}
	logger := opts.newLogger(stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	cfg := mindbridge.NewConfig()
	cfg.HeadsetOpener = func(device, headsetID string, openSerial bool) (mindbridge.Headset, error) {
		headset, err := thinkgear.Open(device, headsetID, openSerial, logger)
		if err != nil {
			return nil, err
		}
		return headset, nil
	}

	var servers []*http.Server
	defer func() {
		shutdownServers(servers, logger)
	}()

	if opts.Stream {
		transport := outlet.NewServer(cfg, reg, logger)
		server, err := serve(opts.StreamAddr, transport, logger)
		if err != nil {
			logger.Error("streamListenFailed", slog.String("addr", opts.StreamAddr), slog.Any("err", err))
			return exitFailure
		}
		servers = append(servers, server)
		cfg.StreamTransport = transport
	}

	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server, err := serve(opts.MetricsAddr, mux, logger)
		if err != nil {
			logger.Error("metricsListenFailed", slog.String("addr", opts.MetricsAddr), slog.Any("err", err))
			return exitFailure
		}
		servers = append(servers, server)
	}

	bridge := mindbridge.NewBridge(cfg, opts.bridgeOptions(), mindbridge.NewMetrics(reg), logger)

	logger.Info("settingUp")
	if _, err := bridge.Setup(ctx); err != nil {
		logger.Error("setupFailed", slog.Any("err", err))
		return exitFailure
	}
	defer bridge.Close()

	if err := bridge.Write(ctx, mindbridge.EnableRawOutputCommand); err != nil {
		logger.Warn("interrupted", slog.Any("err", err))
		return exitInterrupted
	}

	logger.Info("running")
	err = bridge.Run(ctx)
	logger.Warn("interrupted", slog.Any("err", err))
	return exitInterrupted
}

// serve listens on addr and serves handler in the background.
//
// The listener is created synchronously: address errors are returned.
func serve(addr string, handler http.Handler, logger mindbridge.SLogger) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("listening", slog.String("addr", listener.Addr().String()))
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serveFailed", slog.String("addr", addr), slog.Any("err", err))
		}
	}()
	return server, nil
}

func shutdownServers(servers []*http.Server, logger mindbridge.SLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("shutdownFailed", slog.Any("err", err))
		}
	}
}
