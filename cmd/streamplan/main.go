// Package main is the entry point for the streamplan application.
package main

import (
	"os"

	"github.com/streamplan/streamplan/cmd/streamplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
