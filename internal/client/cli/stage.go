package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/pkg/api"
)

func (c *Cli) stageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <file>",
		Short: "Check drafts from a JSON file and add them to the outbox",
		Long: "Check drafts from a JSON file and add them to the outbox.\n" +
			"The file holds an upload request ({\"drafts\": [...]}) or a plain array of drafts.\n" +
			"Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open drafts file: %w", err)
				}
				defer f.Close()
				in = f
			}

			n, err := c.dataService.Stage(cmd.Context(), in)
			if err != nil {
				return err
			}

			c.io.Printf("✓ Staged %s draft(s)\n", humanize.Comma(int64(n)))
			return nil
		},
	}
}

func (c *Cli) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List drafts waiting in the outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			staged, sum, err := c.dataService.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(staged) == 0 {
				c.io.Println("Outbox is empty")
				return nil
			}

			for _, s := range staged {
				c.io.Printf("%4d  %-6s  %-8s %-10d  staged %s\n",
					s.Seq, action(s.Draft), s.Draft.Type, s.Draft.ID, humanize.RelTime(s.StagedAt, time.Now(), "ago", "from now"))
			}
			c.io.Printf("\n%s draft(s): %d create, %d modify, %d delete\n",
				humanize.Comma(int64(sum.Total())), sum.Creates, sum.Modifies, sum.Deletes)
			return nil
		},
	}
}

func (c *Cli) discardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Remove all drafts from the outbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.dataService.Discard(cmd.Context())
			if err != nil {
				return err
			}
			c.io.Printf("✓ Discarded %s draft(s)\n", humanize.Comma(int64(n)))
			return nil
		},
	}
}

func action(d api.Draft) string {
	switch {
	case d.ID < 0:
		return "create"
	case !d.Visible && d.IfUnused:
		return "delete?"
	case !d.Visible:
		return "delete"
	default:
		return "modify"
	}
}
