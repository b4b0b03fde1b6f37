// Estampa CLI - generate a print from a text prompt in the terminal.
package main

import (
	"os"

	"github.com/snappy-loop/estampa/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
