// narrate: one-shot narration of a single record
//
// Usage:
//
//	narrate -record recXXXX [-config narrate.yaml] [-json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/teslashibe/go-narrate/internal/app"
	"github.com/teslashibe/go-narrate/internal/config"
	"github.com/teslashibe/go-narrate/internal/log"
	"github.com/teslashibe/go-narrate/pkg/narration"
)

var version = "1.0.0"

func main() {
	var (
		configPath = flag.String("config", os.Getenv("NARRATE_CONFIG"), "Path to YAML config file")
		recordID   = flag.String("record", "", "Record ID to narrate (required)")
		asJSON     = flag.Bool("json", false, "Print the result as JSON")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if *recordID == "" && flag.NArg() > 0 {
		*recordID = flag.Arg(0)
	}
	if *recordID == "" {
		fmt.Fprintln(os.Stderr, "Error: -record is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	// no HTTP server to subscribe through
	cfg.Server.EventFeed = false
	logger := log.Init(log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	defer log.Close()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, version, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close(ctx)

	res, err := a.Service.Process(ctx, *recordID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s: %v\n", narration.Classify(err), err)
		a.Close(ctx)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(map[string]any{
			"recordId":   res.RecordID,
			"requestId":  res.RequestID,
			"storageKey": res.StorageKey,
			"audioUrl":   res.AudioURL,
			"bytes":      res.Bytes,
			"durationMs": res.Duration.Milliseconds(),
			"timing":     res.Timing,
		})
		return
	}

	fmt.Printf("✅ %s narrated\n", res.RecordID)
	fmt.Printf("   URL:      %s\n", res.AudioURL)
	fmt.Printf("   Key:      %s\n", res.StorageKey)
	fmt.Printf("   Size:     %d bytes\n", res.Bytes)
	fmt.Printf("   Duration: %v\n", res.Duration)
	fmt.Printf("   Timing:   %d events\n", len(res.Timing))
}
