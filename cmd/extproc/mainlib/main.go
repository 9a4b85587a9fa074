// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package mainlib contains the entrypoint of the external processor so that
// it can be reused from tests and other binaries.
package mainlib

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	extprocv3 "github.com/envoyproxy/go-control-plane/envoy/service/ext_proc/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/appnet-org/grpc-filter/filterapi"
	"github.com/appnet-org/grpc-filter/internal/extproc"
)

// parseAndValidateFlags parses and validates the flags passed to the external
// processor on the command line.
//
// Each flag is also validated where it makes sense, and an error is returned
// if any validation fails. On error the returned values are the zero values
// except logLevel which defaults to info.
func parseAndValidateFlags(args []string) (configPath, extProcAddr string, logLevel slog.Level, err error) {
	fs := flag.NewFlagSet("gRPC filter external processor", flag.ContinueOnError)
	configPathPtr := fs.String(
		"configPath",
		"",
		"path to the filter configuration file. This must be provided.",
	)
	extProcAddrPtr := fs.String(
		"extProcAddr",
		":1063",
		"gRPC address for the external processor. For example, :1063 or unix:///tmp/ext_proc.sock",
	)
	logLevelPtr := fs.String(
		"logLevel",
		"info",
		"log level for the external processor. One of 'debug', 'info', 'warn', or 'error'.",
	)

	if err = fs.Parse(args); err != nil {
		err = fmt.Errorf("failed to parse flags: %w", err)
		return
	}

	if *configPathPtr == "" {
		err = fmt.Errorf("configPath must be provided")
		return
	}

	var level slog.Level
	if err = level.UnmarshalText([]byte(*logLevelPtr)); err != nil {
		err = fmt.Errorf("failed to unmarshal log level: %w", err)
		return
	}

	configPath = *configPathPtr
	extProcAddr = *extProcAddrPtr
	logLevel = level
	return
}

// listenAddress returns the network and address for the given address flag.
func listenAddress(addrFlag string) (string, string) {
	if after, ok := strings.CutPrefix(addrFlag, "unix://"); ok {
		return "unix", after
	}
	return "tcp", addrFlag
}

// Main is the real entrypoint of the external processor. It accepts the
// command line arguments and the writer used for logging.
func Main(ctx context.Context, args []string, stderr io.Writer) error {
	configPath, extProcAddr, logLevel, err := parseAndValidateFlags(args)
	if err != nil {
		return fmt.Errorf("failed to parse and validate flags: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel}))
	logger.Info("starting external processor",
		slog.String("configPath", configPath),
		slog.String("extProcAddr", extProcAddr),
		slog.String("logLevel", logLevel.String()),
	)

	config, err := filterapi.UnmarshalConfigYaml(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration %q: %w", configPath, err)
	}

	server, err := extproc.NewServer(logger)
	if err != nil {
		return fmt.Errorf("failed to create external processor server: %w", err)
	}
	if err := server.SetConfig(config); err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}

	network, address := listenAddress(extProcAddr)
	lis, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", extProcAddr, err)
	}

	grpcServer := grpc.NewServer()
	extprocv3.RegisterExternalProcessorServer(grpcServer, server)
	grpc_health_v1.RegisterHealthServer(grpcServer, server)

	go func() {
		<-ctx.Done()
		grpcServer.GracefulStop()
	}()
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC server: %w", err)
	}
	return nil
}
