// gpucheck verifies that every GPU the NVIDIA driver reports is visible to
// the NVML runtime and responds to basic queries. Exit status is non-zero
// when any GPU is missing or unresponsive.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bryg-dev/gpulaunch/internal/gpudiag"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checker := &gpudiag.Checker{Log: log.Logger}
	report, err := checker.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("Number of available GPUs: %d\n", report.DriverCount)
	fmt.Printf("Number of GPUs visible to the runtime: %d\n", report.RuntimeCount)
	for _, dev := range report.Devices {
		fmt.Printf("GPU %d: %s (%.1f GiB total, %.1f GiB free)\n",
			dev.Index, dev.Name,
			float64(dev.MemoryTotal)/(1<<30), float64(dev.MemoryFree)/(1<<30))
	}
	for _, failure := range report.Failures {
		fmt.Println(failure)
	}
	if !report.OK() {
		os.Exit(1)
	}
	fmt.Println("All GPUs are visible and responding.")
}
