// The hlswatch command is a one-shot validator: it fetches a playlist tree
// once through the monitor engine and reports the findings as JSON. It is a
// thin demonstration of the engine's programmatic API; a long-running
// service, an HTTP façade, and full CLI argument handling are external
// collaborators per §1 and are not implemented here.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/brinkwave/hlswatch/internal/engine"
)

func main() {
	var (
		url     = flag.String("url", "", "master or media playlist URL to validate")
		verbose = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		flag.Usage()
		os.Exit(1)
	}

	level := hclog.Info
	if *verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "hlswatch",
		Level: level,
	})

	if err := run(*url, logger); err != nil {
		logger.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

func run(url string, logger hclog.Logger) error {
	cfg := engine.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m := engine.New("validator", cfg, engine.WithLogger(logger))
	if _, err := m.AddStream(url, "root"); err != nil {
		return fmt.Errorf("add stream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	findings := m.PollOnce(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, f := range findings {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("encode finding: %w", err)
		}
	}

	logger.Info("validation complete", "findings", len(findings))
	return nil
}
