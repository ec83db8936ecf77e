// Command secretary is a terminal front end for the virtual secretary.
package main

import (
	"os"
	_ "time/tzdata"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	opts := &rootOptions{}
	if err := opts.execute(newRootCmd(opts)); err != nil {
		os.Exit(1)
	}
}
