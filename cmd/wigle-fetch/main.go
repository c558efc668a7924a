// The main package for the wigle-fetch executable.
package main

import (
	"github.com/JakeFAU/wigle-openroaming/cmd"
)

func main() {
	cmd.Execute()
}
