package main

import (
	"fmt"
	"os"

	"github.com/joelanford/axscan/app/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if err == cli.ErrFindings {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
