package main

import (
	"os"

	"pft/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
