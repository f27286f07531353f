package cmd

import (
	"fmt"
	"time"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/schemamancer/schemamancer/diff"
	"github.com/schemamancer/schemamancer/store"

	"github.com/urfave/cli/v2"
)

func SnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Create a schema snapshot from a definition file or live database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "schema",
				Usage: "Path to a schema definition JSON file",
			},
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "PostgreSQL connection string to introspect",
				EnvVars: []string{"SCHEMAMANCER_DSN"},
			},
			&cli.StringFlag{
				Name:  "environment",
				Usage: "Environment whose current snapshot becomes the parent",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Snapshot description",
			},
			&cli.StringFlag{
				Name:    "author",
				Usage:   "Snapshot author",
				EnvVars: []string{"SCHEMAMANCER_AUTHOR", "USER"},
			},
		},
		Action: func(c *cli.Context) error {
			s, config, err := openStore()
			if err != nil {
				return err
			}

			m, err := loadModelFromInput(c.String("schema"), c.String("dsn"))
			if err != nil {
				return err
			}

			environment := c.String("environment")
			if environment == "" {
				environment = config.DefaultEnvironment
			}

			parentHash, err := s.GetCurrentSnapshot(environment)
			if err != nil {
				return fmt.Errorf("reading environment %s: %v", environment, err)
			}

			meta := store.SnapshotMetadata{
				CreatedAt:   time.Now().UTC(),
				CreatedBy:   c.String("author"),
				Description: c.String("description"),
			}

			var parents []string
			if parentHash != "" {
				parents = append(parents, parentHash)
			}
			snap, err := s.CreateSnapshot(m, meta, parents...)
			if err != nil {
				return err
			}

			if snap.Hash == parentHash {
				fmt.Printf("Schema unchanged; snapshot %s already current for %s\n",
					utils.ShortHash(snap.Hash), environment)
				return nil
			}

			if err := s.SaveSnapshot(snap); err != nil {
				return fmt.Errorf("saving snapshot: %v", err)
			}
			fmt.Printf("Created snapshot %s\n", snap.Hash)

			// Record the edge from the parent so the graph can plan
			// migrations between the two versions.
			if parentHash != "" {
				parent, err := s.LoadSnapshot(parentHash)
				if err != nil {
					return fmt.Errorf("loading parent snapshot: %v", err)
				}
				d := diff.ComputeDiff(parent.Model, m)
				steps := diff.DiffToSteps(d, parent.Model, m)
				t := s.CreateTransition(parentHash, snap.Hash, steps, c.String("description"))
				if err := s.SaveTransition(t); err != nil {
					return fmt.Errorf("saving transition: %v", err)
				}
				fmt.Printf("Recorded transition %s -> %s (%d steps)\n",
					utils.ShortHash(parentHash), utils.ShortHash(snap.Hash), len(steps))
			}

			fmt.Println("\n✅ Snapshot complete!")
			return nil
		},
	}
}
