// Package main is the entry point for the kolbi CLI binary.
package main

import (
	"os"

	"smartkeiba/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
