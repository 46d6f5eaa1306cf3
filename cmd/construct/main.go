// Command construct drives a code-generation agent from requirement
// documents to a passing test suite.
package main

import (
	"os"

	"github.com/roach88/construct/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
