package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/internal/client/storage"
)

func (c *Cli) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := c.io.ReadInput("Username: ")
			if err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
			password, err := c.io.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			confirm, err := c.io.ReadPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			resp, err := c.authService.Register(ctx, username, password)
			if err != nil {
				return err
			}

			c.io.Println("✓ Registration successful!")
			c.io.Printf("User ID: %s\n", resp.UserID)
			c.io.Println("Run 'mapkeeper login' to start a session.")
			return nil
		},
	}
}

func (c *Cli) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := c.io.ReadInput("Username: ")
			if err != nil {
				return fmt.Errorf("failed to read username: %w", err)
			}
			password, err := c.io.ReadPassword("Password: ")
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			session, err := c.authService.Login(ctx, username, password)
			if err != nil {
				return err
			}

			c.io.Println("✓ Login successful!")
			c.io.Printf("Username: %s\n", session.Username)
			if len(session.Roles) > 0 {
				c.io.Printf("Roles: %s\n", strings.Join(session.Roles, ", "))
			}
			c.io.Printf("Session expires %s\n", humanize.Time(time.Unix(session.ExpiresAt, 0)))
			return nil
		},
	}
}

func (c *Cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.authService.Logout(cmd.Context()); err != nil {
				return err
			}
			c.io.Println("✓ Logged out")
			return nil
		},
	}
}

func (c *Cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, current changeset and pending drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			session, err := c.store.GetAuth(ctx)
			switch {
			case errors.Is(err, storage.ErrAuthNotFound):
				c.io.Println("Status: Not authenticated")
			case err != nil:
				return fmt.Errorf("failed to get session: %w", err)
			default:
				expiresAt := time.Unix(session.ExpiresAt, 0)
				c.io.Printf("User: %s (%s)\n", session.Username, session.UserID)
				if time.Now().Before(expiresAt) {
					c.io.Printf("Session expires %s\n", humanize.Time(expiresAt))
				} else {
					c.io.Printf("⚠️  Session expired %s, please login again\n", humanize.Time(expiresAt))
				}
			}

			id, err := c.store.GetCurrentChangeset(ctx)
			switch {
			case errors.Is(err, storage.ErrNoChangeset):
				c.io.Println("Changeset: none open")
			case err != nil:
				return fmt.Errorf("failed to get current changeset: %w", err)
			default:
				c.io.Printf("Changeset: %d\n", id)
			}

			count, err := c.syncService.PendingCount(ctx)
			if err != nil {
				return err
			}
			c.io.Printf("Pending: %s draft(s)\n", humanize.Comma(int64(count)))
			return nil
		},
	}
}
