package main

import (
	"os"

	"github.com/b2english/tensequest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
