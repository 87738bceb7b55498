// Package main is the entry point for the groovekit API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/groovekit/groovekit/pkg/api"
	"github.com/groovekit/groovekit/pkg/config"
	"github.com/groovekit/groovekit/pkg/logger"
)

func main() {
	port := flag.Int("port", 8080, "Port to run the server on")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(*verbose)

	fmt.Printf("Starting GrooveKit API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
