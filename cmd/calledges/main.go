package main

import (
	"os"

	"github.com/abramin/calledges/cmd/calledges/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
