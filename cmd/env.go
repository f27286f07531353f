package cmd

import (
	"errors"
	"fmt"
	"os"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/schemamancer/schemamancer/graph"
	"github.com/schemamancer/schemamancer/store"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func EnvCommand() *cli.Command {
	return &cli.Command{
		Name:  "env",
		Usage: "Show or move environment snapshot pointers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "set",
				Usage: "Environment to move (requires --to)",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Snapshot hash (or prefix) to point the environment at",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip the graph-path check when moving the pointer",
			},
		},
		Action: func(c *cli.Context) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}

			if env := c.String("set"); env != "" {
				if c.String("to") == "" {
					return fmt.Errorf("--set requires --to")
				}
				targetHash, err := resolveHash(s, c.String("to"))
				if err != nil {
					return err
				}

				currentHash, err := s.GetCurrentSnapshot(env)
				if err != nil {
					return err
				}

				// The tracker itself does not validate reachability;
				// the command does, because a pointer move without a
				// migration path is almost always a mistake.
				if currentHash != "" && !c.Bool("force") {
					if err := checkPathExists(s, currentHash, targetHash); err != nil {
						return fmt.Errorf("%v (use --force to override)", err)
					}
				}

				if _, err := s.UpdateState(env, targetHash, currentHash); err != nil {
					return fmt.Errorf("updating environment: %v", err)
				}
				fmt.Printf("✅ %s -> %s\n", env, utils.ShortHash(targetHash))
				return nil
			}

			environments, err := s.ListEnvironments()
			if err != nil {
				return fmt.Errorf("listing environments: %v", err)
			}
			if len(environments) == 0 {
				fmt.Println("No environments tracked yet.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Environment", "Snapshot", "Updated"})
			table.SetBorder(false)
			for _, env := range environments {
				state, err := s.GetOrCreateState(env)
				if err != nil {
					return err
				}
				current := "(none)"
				if state.CurrentSnapshot != "" {
					current = utils.ShortHash(state.CurrentSnapshot)
				}
				table.Append([]string{
					env,
					current,
					state.UpdatedAt.Format("2006-01-02 15:04"),
				})
			}
			table.Render()
			return nil
		},
	}
}

func checkPathExists(s *store.Store, from, to string) error {
	hashes, err := s.ListSnapshots()
	if err != nil {
		return err
	}
	transitions, err := s.ListTransitions()
	if err != nil {
		return err
	}
	g := graph.Build(hashes, transitions)
	if _, err := graph.FindPath(g, from, to); err != nil {
		var notFound *graph.PathNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("no recorded migration path from %s to %s",
				utils.ShortHash(from), utils.ShortHash(to))
		}
		return err
	}
	return nil
}
