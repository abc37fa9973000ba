package main

import (
	"fmt"
	"os"

	"github.com/mithrel/agentipc/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentipc:", err)
		os.Exit(1)
	}
}
