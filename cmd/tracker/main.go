// Package main is the entry point for the GPS tracker.
package main

import (
	"os"

	"github.com/coattosintetico/termux-gps-tracker/cmd/tracker/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
