// The main package for the nameharvest executable.
package main

import (
	"github.com/takiuddin/nameharvest/cmd"
)

func main() {
	cmd.Execute()
}
