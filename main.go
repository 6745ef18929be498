package main

import (
	"os"

	"github.com/viaduct-dev/viaduct/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
