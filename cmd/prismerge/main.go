// Command prismerge merges one or more SQLite databases that share a
// common declarative schema into a single output database, preserving
// referential integrity across the merge.
package main

import (
	"fmt"
	"os"

	"github.com/camertron/prismerge/internal/merge"
)

func main() {
	if err := Execute(); err != nil {
		if _, ok := err.(*merge.FatalMergeError); ok {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
