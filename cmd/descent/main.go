package main

import (
	"os"

	"github.com/rand/descent/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
