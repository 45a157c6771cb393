// Command pagedbd opens one table file and serves the admin HTTP
// surface (pkg/admin) over it: stats, schema, scan, GraphQL, and a
// WebSocket buffer-pool event feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotdb/pkg/admin"
	"slotdb/pkg/record"
)

func main() {
	host := flag.String("host", "localhost", "admin server host")
	port := flag.Int("port", 8090, "admin server port")
	bufferSize := flag.Int("buffer-size", record.DefaultBufferPoolCapacity, "buffer pool size in pages")
	corsOrigin := flag.String("cors-origin", "*", "CORS allowed origin")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: pagedbd [flags] <table-file>")
		os.Exit(1)
	}
	tablePath := flag.Arg(0)

	tbl, err := record.OpenTable(tablePath, *bufferSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open table: %v\n", err)
		os.Exit(1)
	}

	config := admin.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.AllowedOrigins = []string{*corsOrigin}

	srv, err := admin.New(config, tbl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin server: %v\n", err)
		tbl.Close()
		os.Exit(1)
	}

	fmt.Printf("pagedbd listening on %s:%d over %s (%d tuples, buffer pool %d pages)\n",
		config.Host, config.Port, tablePath, tbl.NumTuples(), *bufferSize)

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	case sig := <-sigChan:
		fmt.Printf("received signal %v, shutting down\n", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		}
	}

	if err := tbl.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing table: %v\n", err)
		os.Exit(1)
	}
}
