package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "careflow",
		EnableShellCompletion: true,
		Usage:                 "Clinic workflow and automation execution core",
		Commands: []*cli.Command{
			runCommand(),
			executeCommand(),
			triggerCommand(),
			seedCommand(),
			validateCommand(),
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
