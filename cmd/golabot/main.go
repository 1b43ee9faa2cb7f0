package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Version is set via ldflags at build time: -ldflags "-X main.Version=..."
var Version = "v0.1-dev"

func main() {
	// A .env next to the binary is convenient for development; real
	// deployments use config.yaml or the environment.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
