package cmd

import (
	"fmt"
	"os"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List known snapshots and transitions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "transitions",
				Usage: "Also list transitions between snapshots",
			},
		},
		Action: func(c *cli.Context) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}

			hashes, err := s.ListSnapshots()
			if err != nil {
				return fmt.Errorf("listing snapshots: %v", err)
			}

			if len(hashes) == 0 {
				fmt.Println("No snapshots yet. Create one with: schemamancer snapshot")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Hash", "Created", "By", "Description"})
			table.SetBorder(false)
			for _, hash := range hashes {
				createdAt, createdBy, description, err := s.SnapshotInfo(hash)
				if err != nil {
					return err
				}
				table.Append([]string{
					utils.ShortHash(hash),
					createdAt.Format("2006-01-02 15:04"),
					createdBy,
					description,
				})
			}
			table.Render()

			if !c.Bool("transitions") {
				return nil
			}

			transitions, err := s.ListTransitions()
			if err != nil {
				return fmt.Errorf("listing transitions: %v", err)
			}
			if len(transitions) == 0 {
				fmt.Println("\nNo transitions recorded.")
				return nil
			}

			fmt.Println()
			edges := tablewriter.NewWriter(os.Stdout)
			edges.SetHeader([]string{"From", "To", "Steps", "Created"})
			edges.SetBorder(false)
			for _, t := range transitions {
				edges.Append([]string{
					utils.ShortHash(t.FromHash),
					utils.ShortHash(t.ToHash),
					fmt.Sprintf("%d", len(t.Steps)),
					t.Metadata.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			edges.Render()
			return nil
		},
	}
}
