package main

import (
	"github.com/rzbill/stencil/pkg/cli/cmd"
)

func main() {
	cmd.Execute()
}
