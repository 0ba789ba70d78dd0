// Command tableside runs the tableside CLI.
package main

import "github.com/mesh-intelligence/tableside/internal/cli"

func main() {
	cli.Execute()
}
