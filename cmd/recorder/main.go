package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"signal-recorder/internal/cli"
)

func main() {
	// The root command loads config and replaces this logger before any
	// subcommand runs.
	root := cli.NewRootCmd(nil, zerolog.New(os.Stderr).With().Timestamp().Logger())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
