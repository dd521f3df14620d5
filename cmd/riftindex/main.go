// Package main provides the entry point for the riftindex CLI.
package main

import (
	"os"

	"github.com/riftindex/riftindex/cmd/riftindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
