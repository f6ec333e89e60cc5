package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jusunglee/railboard/pkg/railboard"
)

func main() {
	var (
		consumerKey = flag.String("consumer-key", "", "ODPT consumer key")
		railway     = flag.String("railway", "Toei.Mita", "Railway to query, short or full id")
		mock        = flag.Bool("mock", false, "Use generated data instead of ODPT")
		svgPath     = flag.String("svg", "", "Also write the rendered board to this file")
		wait        = flag.Duration("wait", 30*time.Second, "How long to wait for the first update")
	)
	flag.Parse()

	if err := railboard.LoadDotEnv("."); err != nil {
		slog.Error("Failed to load env files", "error", err)
		os.Exit(1)
	}
	config, err := railboard.FromEnv()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Flags win over the environment
	if *consumerKey != "" {
		config.ConsumerKey = *consumerKey
	}
	if *mock {
		config.Mock = true
	}

	logger := railboard.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"))

	client, err := railboard.NewLocal(config, logger)
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Println("Waiting for initial data...")
	deadline := time.Now().Add(*wait)
	for client.GetLastUpdate().IsZero() {
		if time.Now().After(deadline) {
			logger.Error("No data before timeout", "wait", *wait)
			os.Exit(1)
		}
		time.Sleep(200 * time.Millisecond)
	}

	line, err := client.GetLine(*railway)
	if err != nil {
		logger.Error("Failed to get railway", "railway", *railway, "error", err)
		os.Exit(1)
	}
	scene, err := client.GetScene(*railway, railboard.SceneOptions{})
	if err != nil {
		logger.Error("Failed to lay out railway", "railway", *railway, "error", err)
		os.Exit(1)
	}

	fmt.Printf("\n%s (%s)\n", line.Railway.Title, line.Railway.ID)
	fmt.Printf("  Stations: %d, inbound %d, outbound %d\n", len(scene.Stations), scene.Inbound, scene.Outbound)
	if line.Snapshot.Error != "" {
		fmt.Printf("  Last error: %s\n", line.Snapshot.Error)
	}

	for _, b := range scene.Badges {
		fmt.Printf("  %-8s %-6s %-9s row %d x=%.0f stack %d", b.Number, b.Type.Label, b.Direction, b.Row, b.X, b.Offset)
		if m := b.DelayMinutes(); m > 0 {
			fmt.Printf(" +%d min", m)
		}
		if b.Destination != "" {
			fmt.Printf(" -> %s", b.Destination)
		}
		fmt.Println()
	}
	if len(scene.Unresolved) > 0 {
		fmt.Printf("  Not on this line: %v\n", scene.Unresolved)
	}

	if *svgPath != "" {
		f, err := os.Create(*svgPath)
		if err != nil {
			logger.Error("Failed to create svg file", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := scene.WriteSVG(f); err != nil {
			logger.Error("Failed to write svg", "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nWrote %s\n", *svgPath)
	}

	fmt.Printf("\nLast update: %s\n", client.GetLastUpdate().Format("15:04:05"))
}
