package cmd

import (
	"fmt"
	"os"
	"time"

	utils "github.com/schemamancer/schemamancer/internal/utils"

	"github.com/schemamancer/schemamancer/merge"
	"github.com/schemamancer/schemamancer/store"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
)

func MergeCommand() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Three-way merge two diverged snapshots against their common ancestor",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "base",
				Required: true,
				Usage:    "Common ancestor snapshot hash (or prefix)",
			},
			&cli.StringFlag{
				Name:     "local",
				Required: true,
				Usage:    "Local branch snapshot hash (or prefix)",
			},
			&cli.StringFlag{
				Name:     "remote",
				Required: true,
				Usage:    "Remote branch snapshot hash (or prefix)",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "Description for the merge snapshot",
			},
			&cli.StringFlag{
				Name:    "author",
				Usage:   "Merge snapshot author",
				EnvVars: []string{"SCHEMAMANCER_AUTHOR", "USER"},
			},
		},
		Action: func(c *cli.Context) error {
			s, _, err := openStore()
			if err != nil {
				return err
			}

			baseSnap, err := loadByPrefix(s, c.String("base"))
			if err != nil {
				return err
			}
			localSnap, err := loadByPrefix(s, c.String("local"))
			if err != nil {
				return err
			}
			remoteSnap, err := loadByPrefix(s, c.String("remote"))
			if err != nil {
				return err
			}

			result := merge.MergeSchemas(baseSnap.Model, localSnap.Model, remoteSnap.Model)

			if !result.CanAutoMerge {
				fmt.Printf("❌ Merge has %d conflict(s):\n\n", len(result.Conflicts))
				table := tablewriter.NewWriter(os.Stdout)
				table.SetHeader([]string{"Type", "Entity", "Field", "Local", "Remote"})
				table.SetBorder(false)
				for _, conflict := range result.Conflicts {
					table.Append([]string{
						string(conflict.Type),
						conflict.Entity,
						conflict.Field,
						conflict.LocalChange,
						conflict.RemoteChange,
					})
				}
				table.Render()
				return fmt.Errorf("resolve conflicts manually, then snapshot the resolved schema")
			}

			description := c.String("description")
			if description == "" {
				description = fmt.Sprintf("merge of %s and %s",
					utils.ShortHash(localSnap.Hash), utils.ShortHash(remoteSnap.Hash))
			}
			snap, err := merge.CreateMergeSnapshot(s, result.Merged, localSnap.Hash, remoteSnap.Hash,
				store.SnapshotMetadata{
					CreatedAt:   time.Now().UTC(),
					CreatedBy:   c.String("author"),
					Description: description,
				})
			if err != nil {
				return fmt.Errorf("persisting merge: %v", err)
			}

			fmt.Printf("✅ Merged cleanly into snapshot %s\n", snap.Hash)
			return nil
		},
	}
}

func loadByPrefix(s *store.Store, prefix string) (*store.Snapshot, error) {
	hash, err := resolveHash(s, prefix)
	if err != nil {
		return nil, err
	}
	return s.LoadSnapshot(hash)
}
