// Package main is the entry point for the facerelay LiveLink Face to OSC relay.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/facerelay/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
