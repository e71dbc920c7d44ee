// Package main is the entry point for the connectr application.
package main

import (
	"os"

	"github.com/jmylchreest/connectr/cmd/connectr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
