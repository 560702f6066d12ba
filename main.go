// The main package for the navcrawler executable.
package main

import (
	"github.com/JakeFAU/realtime-nav-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
