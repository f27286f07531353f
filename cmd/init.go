package cmd

import (
	"fmt"
	"os"

	utils "github.com/schemamancer/schemamancer/internal/utils"
	"github.com/schemamancer/schemamancer/store"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize schemamancer configuration file and snapshot store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "storage-path",
				Usage: "Path to store snapshots, transitions and environment state",
				Value: ".schemamancer",
			},
			&cli.StringFlag{
				Name:  "default-environment",
				Usage: "Environment used when --environment is not given",
				Value: "development",
			},
		},
		Action: func(c *cli.Context) error {
			storagePath := c.String("storage-path")

			// If no --storage-path provided, keep an existing config's value
			if !c.IsSet("storage-path") {
				if configPath, err := utils.FindConfigFile(); err == nil {
					if existing, err := utils.ReadConfig(configPath); err == nil {
						storagePath = existing.StoragePath
					}
				}
			}

			config := utils.Config{
				StoragePath:        storagePath,
				DefaultEnvironment: c.String("default-environment"),
			}

			yamlData, err := yaml.Marshal(config)
			if err != nil {
				return fmt.Errorf("creating yaml: %v", err)
			}

			if err := os.WriteFile("schemamancer.yaml", yamlData, 0644); err != nil {
				return fmt.Errorf("writing config file: %v", err)
			}

			// Create the store layout up front so the first snapshot
			// doesn't have to.
			if _, err := store.New(storagePath); err != nil {
				return fmt.Errorf("initializing store: %v", err)
			}

			fmt.Printf("Created schemamancer.yaml with storage path: %s\n", storagePath)
			return nil
		},
	}
}
