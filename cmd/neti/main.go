// Command neti is a network reconnaissance orchestrator. It serves the scan
// API over HTTP and runs the same scans from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
