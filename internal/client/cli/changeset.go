package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/pkg/api"
)

func (c *Cli) changesetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "changeset",
		Short: "Open, close or show changesets",
	}
	cmd.AddCommand(c.changesetOpenCmd(), c.changesetCloseCmd(), c.changesetShowCmd())
	return cmd
}

func (c *Cli) changesetOpenCmd() *cobra.Command {
	var (
		comment string
		tags    []string
	)

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a changeset and make it current",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tagMap, err := parseTags(tags)
			if err != nil {
				return err
			}
			if comment != "" {
				tagMap["comment"] = comment
			}

			token, err := c.accessToken(ctx)
			if err != nil {
				return err
			}

			cs, err := c.syncService.OpenChangeset(ctx, token, tagMap)
			if err != nil {
				return err
			}

			c.io.Printf("✓ Changeset %d opened\n", cs.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&comment, "comment", "m", "", "changeset comment")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "changeset tag as key=value, repeatable")
	return cmd
}

func (c *Cli) changesetCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the current changeset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			token, err := c.accessToken(ctx)
			if err != nil {
				return err
			}

			id, err := c.syncService.CloseChangeset(ctx, token)
			if err != nil {
				return err
			}

			c.io.Printf("✓ Changeset %d closed\n", id)
			return nil
		},
	}
}

func (c *Cli) changesetShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [<id>]",
		Short: "Show a changeset, the current one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				cs  *api.Changeset
				err error
			)
			if len(args) == 1 {
				id, parseErr := strconv.ParseInt(args[0], 10, 64)
				if parseErr != nil {
					return fmt.Errorf("invalid changeset id %q", args[0])
				}
				cs, err = c.apiClient.GetChangeset(ctx, id)
			} else {
				cs, err = c.syncService.CurrentChangeset(ctx)
			}
			if err != nil {
				return err
			}

			c.printChangeset(cs)
			return nil
		},
	}
}

func (c *Cli) printChangeset(cs *api.Changeset) {
	state := "open"
	if !cs.Open {
		state = "closed"
	}

	c.io.Printf("Changeset %d (%s)\n", cs.ID, state)
	c.io.Printf("  Created: %s\n", humanize.Time(cs.CreatedAt))
	c.io.Printf("  Updated: %s\n", humanize.Time(cs.UpdatedAt))
	if cs.ClosedAt != nil {
		c.io.Printf("  Closed:  %s\n", humanize.Time(*cs.ClosedAt))
	}
	c.io.Printf("  Size:    %s (create %s, modify %s, delete %s)\n",
		humanize.Comma(cs.Size),
		humanize.Comma(cs.NumCreate),
		humanize.Comma(cs.NumModify),
		humanize.Comma(cs.NumDelete))

	keys := make([]string, 0, len(cs.Tags))
	for k := range cs.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.io.Printf("  %s=%s\n", k, cs.Tags[k])
	}
}

// parseTags разбирает пары key=value
func parseTags(pairs []string) (map[string]string, error) {
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", pair)
		}
		if _, dup := tags[key]; dup {
			return nil, fmt.Errorf("duplicate tag %q", key)
		}
		tags[key] = value
	}
	return tags, nil
}
