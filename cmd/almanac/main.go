// Package main provides the almanac CLI, a command-line front end for the
// almanac collection store.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// Exit codes: 1 for user errors such as unknown paths or failed
// preconditions, 2 for storage failures.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a storage error onto the CLI exit code contract.
func exitCode(err error) int {
	if errors.Is(err, types.ErrStorageUnavailable) || errors.Is(err, types.ErrStoreClosed) {
		return exitSysError
	}
	return exitUserError
}
