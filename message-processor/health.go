package main

import (
	"fmt"
	"io"

	"counter-pipeline/config"
)

// writeHealth prints configuration presence. It never fails the process.
func writeHealth(w io.Writer, checks []config.Check) {
	fmt.Fprintln(w, "Message Processor Health Check")
	for _, ch := range checks {
		mark := "MISSING"
		if ch.Configured {
			mark = "OK"
		}
		fmt.Fprintf(w, "%-8s %s\n", mark, ch.Name)
	}
	if config.Healthy(checks) {
		fmt.Fprintln(w, "all configuration present")
	} else {
		fmt.Fprintln(w, "configuration incomplete")
	}
}
