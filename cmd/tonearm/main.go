package main

import (
	"os"

	"tonearm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
