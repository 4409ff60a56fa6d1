package main

import (
	"fmt"
	"os"

	"github.com/steadiczech/games-devkit/cmd/gamesctl/commands"
	"github.com/steadiczech/games-devkit/internal/logger"
)

func main() {
	rootCmd := commands.NewRootCommand()

	err := rootCmd.Execute()
	_ = logger.Close()
	if err != nil {
		name := "gamesctl"
		if cmd, _, findErr := rootCmd.Find(os.Args[1:]); findErr == nil && cmd != nil {
			name = cmd.Name()
		}
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", name, err)
		os.Exit(1)
	}
}
