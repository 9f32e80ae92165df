// Package main is the entry point for the lorekeeper CLI.
package main

import (
	"os"

	"github.com/lorekeeper/lorekeeper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
