package cmd

import (
	"fmt"
	"os"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/schemamancer/schemamancer/diff"
	"github.com/schemamancer/schemamancer/model"
	"github.com/schemamancer/schemamancer/safety"
	"github.com/schemamancer/schemamancer/store"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func DiffCommand() *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Compute the migration steps between two schema versions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Source snapshot hash (or prefix)",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Target snapshot hash (or prefix)",
			},
			&cli.StringFlag{
				Name:  "from-schema",
				Usage: "Source schema definition file (instead of --from)",
			},
			&cli.StringFlag{
				Name:  "to-schema",
				Usage: "Target schema definition file (instead of --to)",
			},
			&cli.BoolFlag{
				Name:  "save-transition",
				Usage: "Persist the result as a transition edge (snapshot hashes only)",
			},
		},
		Action: func(c *cli.Context) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}

			fromModel, fromHash, err := diffInput(c, s, "from")
			if err != nil {
				return err
			}
			toModel, toHash, err := diffInput(c, s, "to")
			if err != nil {
				return err
			}

			d := diff.ComputeDiff(fromModel, toModel)
			if d.Empty() {
				fmt.Println("Schemas are identical.")
				return nil
			}

			steps := diff.DiffToSteps(d, fromModel, toModel)
			assessment := safety.AssessTransition(steps)
			printSteps(steps, assessment)

			fmt.Printf("\nOverall safety: %s\n", assessment.Overall)
			for _, warning := range assessment.Warnings {
				fmt.Printf("⚠ %s\n", warning)
			}

			if c.Bool("save-transition") {
				if fromHash == "" || toHash == "" {
					return fmt.Errorf("--save-transition requires snapshot hashes, not schema files")
				}
				t := s.CreateTransition(fromHash, toHash, steps, "recorded by diff")
				if err := s.SaveTransition(t); err != nil {
					return fmt.Errorf("saving transition: %v", err)
				}
				fmt.Printf("\nRecorded transition %s -> %s\n",
					utils.ShortHash(fromHash), utils.ShortHash(toHash))
			}
			return nil
		},
	}
}

// diffInput resolves one side of the diff from either a snapshot hash
// flag or a schema file flag.
func diffInput(c *cli.Context, s *store.Store, side string) (*model.Model, string, error) {
	hashFlag := c.String(side)
	fileFlag := c.String(side + "-schema")

	switch {
	case hashFlag != "" && fileFlag != "":
		return nil, "", fmt.Errorf("--%s and --%s-schema are mutually exclusive", side, side)
	case hashFlag != "":
		hash, err := resolveHash(s, hashFlag)
		if err != nil {
			return nil, "", err
		}
		snap, err := s.LoadSnapshot(hash)
		if err != nil {
			return nil, "", err
		}
		return snap.Model, hash, nil
	case fileFlag != "":
		m, err := loadModelFromInput(fileFlag, "")
		if err != nil {
			return nil, "", err
		}
		return m, "", nil
	default:
		return nil, "", fmt.Errorf("either --%s or --%s-schema is required", side, side)
	}
}

func printSteps(steps []diff.MigrationStep, assessment safety.TransitionAssessment) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Step", "Table", "Detail", "Safety"})
	table.SetBorder(false)
	for i, step := range steps {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			string(step.Type),
			step.Table,
			stepDetail(step),
			string(assessment.Steps[i].Level),
		})
	}
	table.Render()
}

func stepDetail(step diff.MigrationStep) string {
	switch step.Type {
	case diff.StepAddColumn, diff.StepModifyColumn:
		if step.Column != nil {
			return fmt.Sprintf("%s %s", step.Column.Name, step.Column.Type)
		}
	case diff.StepDropColumn:
		return step.ColumnName
	case diff.StepRenameColumn:
		return fmt.Sprintf("%s -> %s", step.FromName, step.ToName)
	case diff.StepAddIndex:
		if step.Index != nil {
			return step.Index.Name
		}
	case diff.StepDropIndex:
		return step.IndexName
	case diff.StepAddForeignKey, diff.StepDropForeignKey:
		if step.ForeignKey != nil {
			return fmt.Sprintf("%s -> %s.%s", step.ForeignKey.Column,
				step.ForeignKey.RefTable, step.ForeignKey.RefColumn)
		}
	}
	return ""
}
