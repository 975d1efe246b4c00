// Package main provides the entry point for the changescan CLI.
package main

import (
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer closeLogging()

	if err := Execute(); err != nil {
		return exitCode(err)
	}
	return 0
}
