package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/f1predict/f1predict/cmd"
	"github.com/f1predict/f1predict/internal/buildinfo"
	"github.com/f1predict/f1predict/internal/conf"
)

// buildDate and version are set at build time with -ldflags "-X main.version=..."
var (
	buildDate string
	version   string
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	build := &buildinfo.Context{
		Version:    version,
		BuildDate:  buildDate,
		InstanceID: uuid.NewString()[:8],
	}

	rootCmd := cmd.RootCommand(settings, build)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
