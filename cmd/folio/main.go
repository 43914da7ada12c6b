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
	err := newRootCommand().Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		// Interrupted by the user; the resume hint already printed.
		return 130
	}
	fmt.Fprintf(os.Stderr, "folio: %v\n", err)
	return 1
}
