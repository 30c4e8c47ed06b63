package cli

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/internal/client/api"
	"github.com/iudanet/mapkeeper/internal/models"
	pkgapi "github.com/iudanet/mapkeeper/pkg/api"
)

func (c *Cli) getCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show the current revision of an element",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			t, err := models.ParseElementType(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid element id %q", args[1])
			}

			if history {
				revisions, err := c.apiClient.History(ctx, t.String(), id)
				if err != nil {
					return err
				}
				for i := range revisions {
					c.printElement(&revisions[i])
				}
				return nil
			}

			e, err := c.apiClient.GetElement(ctx, t.String(), id)
			if err != nil {
				// Удаленный элемент приходит вместе с 410, показываем последнюю ревизию
				if e != nil && api.IsStatus(err, http.StatusGone) {
					c.printElement(e)
					return nil
				}
				return err
			}

			c.printElement(e)
			return nil
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "show every revision")
	return cmd
}

func (c *Cli) printElement(e *pkgapi.Element) {
	state := ""
	if !e.Visible {
		state = " (deleted)"
	}

	c.io.Printf("%s %d v%d%s\n", e.Type, e.ID, e.Version, state)
	c.io.Printf("  Changeset: %d, %s\n", e.ChangesetID, humanize.Time(e.CreatedAt))
	if e.Lon != nil && e.Lat != nil {
		c.io.Printf("  Point:     %.7f, %.7f\n", *e.Lat, *e.Lon)
	}
	for _, m := range e.Members {
		if m.Role != "" {
			c.io.Printf("  Member:    %s %d as %s\n", m.Type, m.ID, m.Role)
		} else {
			c.io.Printf("  Member:    %s %d\n", m.Type, m.ID)
		}
	}

	keys := make([]string, 0, len(e.Tags))
	for k := range e.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.io.Printf("  %s=%s\n", k, e.Tags[k])
	}
}
