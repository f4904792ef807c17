package main

import (
	"os"

	"github.com/solatis/cardwright/cmd/cardwright/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
