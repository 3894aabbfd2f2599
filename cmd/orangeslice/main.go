/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command orangeslice runs B2B database queries and AI object generation from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
