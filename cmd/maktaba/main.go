package main

import (
	"os"

	"github.com/farid/maktaba/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
