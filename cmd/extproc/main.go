// Copyright The AppNet Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/appnet-org/grpc-filter/cmd/extproc/mainlib"
)

func main() {
	// Run the pprof server if the ENABLE_PPROF environment variable is set.
	if os.Getenv("ENABLE_PPROF") != "" {
		go func() {
			pprofPort := "6060" // default pprof port
			if err := http.ListenAndServe("localhost:"+pprofPort, nil); err != nil {
				log.Printf("pprof server failed to start: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	signalsChan := make(chan os.Signal, 1)
	signal.Notify(signalsChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalsChan
		log.Printf("signal received, shutting down...")
		cancel()
	}()
	if err := mainlib.Main(ctx, os.Args[1:], os.Stderr); err != nil {
		log.Fatalf("error: %v", err)
	}
}
