package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		// An interrupt already told the user everything they need.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "repack:", err)
		}
		return 1
	}
	return 0
}
