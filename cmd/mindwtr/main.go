// Command mindwtr is a local-first GTD task manager: a JSON or SQLite
// backed data store with projects, areas, recurring tasks and
// tombstoned deletes, plus a small CLI over it.
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
