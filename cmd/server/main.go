package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"admission-control/internal/config"
	"admission-control/internal/server"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`Admission Control Server

Usage:
  %s [options]

Options:
  -config string
        Path to configuration file (default "config.yaml")
  -h, --help
        Show this help message

Environment Variables:
  Configuration can be overridden using environment variables with ADM_ prefix,
  e.g. ADM_SERVER_PORT, ADM_RATELIMIT_ENABLED, ADM_LOG_LEVEL.

Examples:
  # Start with default config
  %s

  # Start with custom config file
  %s -config /path/to/config.yaml

  # Start with environment override
  ADM_SERVER_PORT=9000 %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}
