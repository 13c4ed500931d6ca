package main

import (
	"fmt"
	"os"

	"github.com/webvisor/webvisor/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "webvisor-server: %v\n", err)
		os.Exit(1)
	}
}
