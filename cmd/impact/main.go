package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gnoverse/impact/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
