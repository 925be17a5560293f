package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/aecr/internal/smoke"
	"github.com/okian/aecr/pkg/logger"
)

// Default configuration constants.
const (
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		users      = flag.String("users", "", "Comma-separated user ids to sync and score")
		platforms  = flag.String("platforms", "google_ads,meta_ads", "Comma-separated platforms to sync per user")
		industry   = flag.String("industry", "", "Industry for score requests (default: service default)")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", smoke.DefaultSettleAfter, "Maximum time to wait for syncs to finish")
		outputFile = flag.String("output", "", "Write a JSON report of the run to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	config := &smoke.Config{
		BaseURL:      strings.TrimRight(*baseURL, "/"),
		Users:        splitList(*users),
		Platforms:    splitList(*platforms),
		Industry:     *industry,
		Workers:      *workers,
		Timeout:      *timeout,
		PollInterval: smoke.DefaultPollInterval,
		SettleAfter:  *settle,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}
	if len(config.Users) == 0 || len(config.Platforms) == 0 {
		os.Stderr.WriteString("at least one user and one platform are required\n")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	_, err := smoke.Run(ctx, config)
	cancel()
	if err != nil {
		os.Stderr.WriteString("smoke run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
