package main

import (
	"fmt"
	"os"

	"nocs-settlement/pkg/errors"
)

const (
	exitFailure       = 1
	exitConfiguration = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.CategoryOf(err) == errors.CategoryConfiguration {
		return exitConfiguration
	}
	return exitFailure
}
