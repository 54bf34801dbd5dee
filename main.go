package main

import (
	"os"

	"github.com/chronoplan/chronoplan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
