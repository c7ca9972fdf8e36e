package main

import (
	"fmt"
	"os"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("obvix %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
