// Package buildinfo prints version information injected with -ldflags.
package buildinfo

import (
	"fmt"
	"io"
	"os"
)

// Print writes build info to stdout.
func Print(version, date, commit string) {
	Fprint(os.Stdout, version, date, commit)
}

// Fprint writes build info to w, using "N/A" for empty values.
func Fprint(w io.Writer, version, date, commit string) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(version))
	fmt.Fprintf(w, "Build date: %s\n", orNA(date))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(commit))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
