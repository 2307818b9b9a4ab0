package main

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/frostbite-extract/cmd"
	"github.com/deploymenttheory/frostbite-extract/internal/config"
	"github.com/deploymenttheory/frostbite-extract/internal/obslog"
)

func main() {
	configFile := os.Getenv("FROSTBITE_EXTRACT_CONFIG")

	// 1. Initialize application configuration.
	if err := config.Initialize(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logging based on application configuration.
	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}

	obslog.LogInfo("application started", map[string]interface{}{
		"version": cmd.Version,
	})

	// 3. Run the cobra command tree.
	cmd.Execute()

	// Ensure logs are flushed before exit.
	obslog.Sync()
}

// initLogging initializes the logger based on configuration settings.
func initLogging() error {
	return obslog.Init(obslog.Config{
		Debug:     config.Instance.Debug,
		LogFormat: config.Instance.LogFormat,
		LogFile:   config.Instance.LogFile,
	})
}
