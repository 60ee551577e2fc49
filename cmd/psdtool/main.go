package main

import (
	"os"

	"github.com/layervault/psd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
