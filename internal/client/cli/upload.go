package cli

import (
	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/internal/client/api"
)

func (c *Cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload the outbox to the current changeset as one diff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			token, err := c.accessToken(ctx)
			if err != nil {
				return err
			}

			result, err := c.syncService.Upload(ctx, token)
			if err != nil {
				if api.IsConflict(err) {
					c.io.Println("⚠️  Diff rejected: the data changed on the server.")
					c.io.Println("Drafts are kept in the outbox. Refresh their versions with 'mapkeeper get' and upload again.")
				}
				return err
			}

			c.io.Printf("✓ Uploaded %d draft(s) to changeset %d\n", result.Uploaded, result.ChangesetID)
			for _, r := range result.Response.Results {
				if r.Visible {
					c.io.Printf("  %-8s %d -> %d v%d\n", r.Type, r.OldID, r.NewID, r.NewVersion)
				} else {
					c.io.Printf("  %-8s %d deleted v%d\n", r.Type, r.OldID, r.NewVersion)
				}
			}
			for _, s := range result.Response.Skipped {
				c.io.Printf("  %-8s %d skipped, still in use at v%d\n", s.Type, s.ID, s.Version)
			}
			return nil
		},
	}
}
