package main

import (
	"os"

	"github.com/codetutor/codetutor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
