package main

import (
	"os"

	"github.com/rustyeddy/intraday/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
