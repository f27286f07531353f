package main

import (
	"log"
	"os"

	"github.com/schemamancer/schemamancer/cmd"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "schemamancer",
		Usage: "A CLI tool to version, diff and migrate database schemas through a snapshot graph",
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.SnapshotCommand(),
			cmd.ListCommand(),
			cmd.DiffCommand(),
			cmd.PlanCommand(),
			cmd.MergeCommand(),
			cmd.EnvCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
