package main

import (
	"os"

	"inspecta-backend/cmd/inspectctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
