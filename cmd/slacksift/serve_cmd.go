package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slacksift/slacksift/internal/web"
)

// handleServe runs the local HTTP API until interrupted.
func handleServe(workspaceAlias string, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	listenAddr := fs.String("listen", "127.0.0.1:8430", "Listen address for the API server")
	token := fs.String("token", "", "Bearer token required on every request (default: open)")

	fs.Usage = func() {
		fmt.Println("Usage: slacksift serve [options]")
		fmt.Println()
		fmt.Println("Serve the query API over HTTP. Read endpoints answer once an index")
		fmt.Println("exists; POST /api/sync builds or refreshes it, and /ws/progress")
		fmt.Println("streams sync progress.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  slacksift serve")
		fmt.Println("  slacksift -w work serve --listen 127.0.0.1:9430 --token s3cret")
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", fs.Args())
		os.Exit(1)
	}

	out := NewCLIOutput(false, false)
	h := openWorkspace(workspaceAlias, out)
	defer h.Close()

	server := web.NewServer(web.Config{
		ListenAddr: *listenAddr,
		Token:      *token,
	}, h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Serving workspace %q on http://%s\n", h.Alias, server.Addr())
	if *token == "" {
		fmt.Println("No --token set; anyone who can reach the port can query.")
	}

	select {
	case err := <-errCh:
		if err != nil {
			exitWithError(out, err)
		}
	case <-ctx.Done():
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
			os.Exit(1)
		}
	}
}
