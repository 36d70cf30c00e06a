// Command neurotrack manages the session store from the shell: schema
// setup, synthetic data, recording import and export, analysis and reports.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
