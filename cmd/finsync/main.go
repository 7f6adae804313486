package main

import (
	"os"

	"github.com/MrJamesThe3rd/finsync/cmd/finsync/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		os.Exit(1)
	}
}
