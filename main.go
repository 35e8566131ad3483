package main

import (
	"os"

	"github.com/spf13/afero"

	"medical-files-server/cmd"
)

func main() {
	if err := cmd.NewRootCommand(afero.NewOsFs(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
