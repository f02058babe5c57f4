// The docstore CLI provides generic operations against a docstore
// database: point reads and writes, queries, bulk NDJSON import, and
// collection management. The backing store is a local SQLite file, which
// makes the CLI useful for local development and for inspecting data
// produced by tests.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
