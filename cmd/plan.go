package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/schemamancer/schemamancer/diff"
	"github.com/schemamancer/schemamancer/graph"
	"github.com/schemamancer/schemamancer/safety"
	"github.com/schemamancer/schemamancer/store"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

func PlanCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Plan the migration from an environment's current snapshot to a target",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "environment",
				Usage: "Environment to plan for",
			},
			&cli.StringFlag{
				Name:     "target",
				Required: true,
				Usage:    "Target snapshot hash (or prefix)",
			},
			&cli.BoolFlag{
				Name:  "allow-destructive",
				Usage: "Acknowledge destructive steps and allow the plan",
			},
			&cli.BoolFlag{
				Name:  "shadow",
				Usage: "Rewrite column drops into shadow renames with a retention window",
			},
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Record the target snapshot as applied for the environment",
			},
		},
		Action: func(c *cli.Context) error {
			s, config, err := openStore()
			if err != nil {
				return err
			}

			environment := c.String("environment")
			if environment == "" {
				environment = config.DefaultEnvironment
			}

			targetHash, err := resolveHash(s, c.String("target"))
			if err != nil {
				return err
			}

			currentHash, err := s.GetCurrentSnapshot(environment)
			if err != nil {
				return err
			}
			if currentHash == targetHash {
				fmt.Printf("Environment %s is already on %s\n", environment, utils.ShortHash(targetHash))
				return nil
			}

			steps, hops, err := planSteps(s, currentHash, targetHash)
			if err != nil {
				return err
			}

			if len(steps) == 0 {
				fmt.Println("Nothing to do: schemas are structurally identical.")
			} else {
				if hops > 0 {
					fmt.Printf("Found graph path with %d transition(s)\n\n", hops)
				} else {
					fmt.Println("No recorded path; planned from a fresh diff")
					fmt.Println()
				}

				assessment := safety.AssessTransition(steps)

				if c.Bool("shadow") {
					retention := time.Duration(config.ShadowRetentionDays) * 24 * time.Hour
					shadowed, entries := safety.ApplyShadowPlan(steps, retention, time.Now().UTC())
					steps = shadowed
					assessment = safety.AssessTransition(steps)
					for _, e := range entries {
						fmt.Printf("Shadowing %s.%s as %s until %s\n",
							e.Table, e.Column, e.ShadowName, e.ExpiresAt.Format("2006-01-02"))
					}
					if len(entries) > 0 {
						fmt.Println()
					}
				}

				printSteps(steps, assessment)
				fmt.Printf("\nOverall safety: %s\n", assessment.Overall)

				warnings, err := safety.IsSafeForAutoDeploy(assessment, c.Bool("allow-destructive"))
				if err != nil {
					var unsafe *safety.UnsafeMigrationError
					if errors.As(err, &unsafe) && confirmDestructive(unsafe) {
						fmt.Println("Destructive steps acknowledged interactively.")
					} else {
						return fmt.Errorf("plan rejected: %v (re-run with --allow-destructive or --shadow)", err)
					}
				}
				for _, warning := range warnings {
					fmt.Printf("⚠ %s\n", warning)
				}
			}

			if !c.Bool("apply") {
				return nil
			}

			// CAS loop: re-read and retry once if another writer moved
			// the pointer while we were planning.
			for attempt := 0; attempt < 2; attempt++ {
				_, err = s.UpdateState(environment, targetHash, currentHash)
				if err == nil {
					break
				}
				var conflict *store.StateConflictError
				if errors.As(err, &conflict) && attempt == 0 {
					fmt.Printf("Environment moved to %s; re-reading\n", utils.ShortHash(conflict.Actual))
					currentHash, err = s.GetCurrentSnapshot(environment)
					if err != nil {
						return err
					}
					if currentHash == targetHash {
						break
					}
					continue
				}
				return fmt.Errorf("updating environment state: %v", err)
			}

			fmt.Printf("\n✅ Environment %s now points at %s\n", environment, utils.ShortHash(targetHash))
			return nil
		},
	}
}

// planSteps prefers the recorded transition graph; when the two
// snapshots are disconnected it falls back to a fresh structural diff.
func planSteps(s *store.Store, currentHash, targetHash string) ([]diff.MigrationStep, int, error) {
	target, err := s.LoadSnapshot(targetHash)
	if err != nil {
		return nil, 0, fmt.Errorf("loading target snapshot: %v", err)
	}

	if currentHash == "" {
		// Nothing applied yet: the plan is the full schema creation.
		empty := emptyModel(target.Model.DatabaseType)
		d := diff.ComputeDiff(empty, target.Model)
		return diff.DiffToSteps(d, empty, target.Model), 0, nil
	}

	hashes, err := s.ListSnapshots()
	if err != nil {
		return nil, 0, err
	}
	transitions, err := s.ListTransitions()
	if err != nil {
		return nil, 0, err
	}
	g := graph.Build(hashes, transitions)

	path, err := graph.FindPath(g, currentHash, targetHash)
	if err == nil {
		var steps []diff.MigrationStep
		for _, t := range path {
			steps = append(steps, t.Steps...)
		}
		return steps, len(path), nil
	}
	var notFound *graph.PathNotFoundError
	if !errors.As(err, &notFound) {
		return nil, 0, err
	}

	current, err := s.LoadSnapshot(currentHash)
	if err != nil {
		return nil, 0, fmt.Errorf("loading current snapshot: %v", err)
	}
	d := diff.ComputeDiff(current.Model, target.Model)
	return diff.DiffToSteps(d, current.Model, target.Model), 0, nil
}

// confirmDestructive prompts for explicit confirmation when attached to
// a terminal; non-interactive runs always refuse.
func confirmDestructive(unsafe *safety.UnsafeMigrationError) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("Destructive steps: %s\n", strings.Join(unsafe.Steps, ", "))
	fmt.Printf("Type 'yes' to proceed anyway: ")
	var response string
	fmt.Scanln(&response)
	return response == "yes"
}
