package main

import (
	"os"

	"batchrun/cmd/batchrun/commands"
)

func main() {
	root := commands.NewRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
