// Command studio is the terminal client for the Bona Parks creative studio.
package main

import "bonaparks/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
