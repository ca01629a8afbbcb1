// The main package for the sitegen executable.
package main

import (
	"github.com/zdub15/agent-website-generator/cmd"
)

func main() {
	cmd.Execute()
}
