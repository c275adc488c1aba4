package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/slacksift/slacksift/internal/ingest"
	"github.com/slacksift/slacksift/internal/registry"
)

// handleBuild runs a full sync: every conversation from the beginning.
func handleBuild(workspaceAlias string, args []string) {
	runSync(workspaceAlias, args, false)
}

// handleUpdate runs an incremental sync from the stored cursors.
func handleUpdate(workspaceAlias string, args []string) {
	runSync(workspaceAlias, args, true)
}

func runSync(workspaceAlias string, args []string, incremental bool) {
	name := "build"
	if incremental {
		name = "update"
	}

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	quiet := fs.Bool("quiet", false, "Minimal output")
	quietShort := fs.Bool("q", false, "Minimal output (short)")

	fs.Usage = func() {
		fmt.Printf("Usage: slacksift %s [options]\n", name)
		fmt.Println()
		if incremental {
			fmt.Println("Fetch messages newer than the last sync and extend the index.")
			fmt.Println("Fails if no full build has ever completed.")
		} else {
			fmt.Println("Fetch all history and rebuild the search index from scratch.")
		}
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		os.Exit(1)
	}

	quietMode := *quiet || *quietShort
	out := NewCLIOutput(*jsonOutput, quietMode)

	h := openWorkspace(workspaceAlias, out)
	defer h.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	showProgress := !*jsonOutput && !quietMode
	progress := func(p ingest.Progress) {
		if !showProgress {
			return
		}
		label := strings.ReplaceAll(string(p.Phase), "-", " ")
		if p.Total > 0 {
			fmt.Fprintf(os.Stderr, "\r%-26s %d/%d      ", label, p.Current, p.Total)
		} else {
			fmt.Fprintf(os.Stderr, "\r%-26s          ", label)
		}
		if p.Phase == ingest.PhaseDone {
			fmt.Fprintln(os.Stderr)
		}
	}

	started := time.Now()
	var stats *registry.Stats
	var err error
	if incremental {
		stats, err = h.Pipeline.UpdateIndex(ctx, progress)
	} else {
		stats, err = h.Pipeline.BuildIndex(ctx, progress)
	}
	if showProgress {
		fmt.Fprint(os.Stderr, "\r                                          \r")
	}
	if err != nil {
		if incremental && errors.Is(err, ingest.ErrNoPriorIndex) {
			out.Error("no index yet for this workspace; run 'slacksift build' first", ErrCodeIndexNotFound)
			os.Exit(2)
		}
		exitWithError(out, err)
	}

	took := time.Since(started).Round(time.Millisecond)
	out.Success(
		fmt.Sprintf("indexed %d messages across %d conversations in %s",
			stats.TotalMessages, stats.DistinctConversations, took),
		map[string]interface{}{
			"success": true,
			"full":    !incremental,
			"stats":   stats,
			"took_ms": took.Milliseconds(),
		})
	if !*jsonOutput && !quietMode && stats.TotalMessages > 0 {
		fmt.Printf("  %d senders, %s to %s\n",
			stats.DistinctSenders,
			formatTS(stats.OldestTimestamp),
			formatTS(stats.NewestTimestamp))
	}
}
