package main

import (
	"os"

	"sectorindex/cmd/sectorindex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
