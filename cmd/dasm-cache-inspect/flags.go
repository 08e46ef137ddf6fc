package main

// flags.go defines the CLI surface: target URL, output mode, watch interval
// and pprof dump destinations.
//
// © 2025 dasm-cache authors. MIT License.

import (
	"flag"
	"time"
)

type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	opts := &options{}

	flag.StringVar(&opts.target, "target", "http://127.0.0.1:6060", "base URL of the instance exposing /debug/dasm-cache/snapshot")
	flag.BoolVar(&opts.json, "json", false, "print the raw JSON snapshot instead of the pretty summary")
	flag.BoolVar(&opts.watch, "watch", false, "poll the snapshot endpoint repeatedly instead of exiting after one fetch")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "polling interval used with -watch")
	flag.StringVar(&opts.heapProfile, "heap-profile", "", "download /debug/pprof/heap to this path and exit")
	flag.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download /debug/pprof/goroutine to this path and exit")
	flag.BoolVar(&opts.version, "version", false, "print the CLI version and exit")

	flag.Parse()
	return opts
}
