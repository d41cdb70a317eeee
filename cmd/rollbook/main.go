// Command rollbook is the offline-first record keeper for students,
// subjects, attendance, and grades, with push/pull synchronization to a
// remote document store.
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
