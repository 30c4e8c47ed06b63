// Package cli команды клиента mapkeeper.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iudanet/mapkeeper/internal/client/api"
	"github.com/iudanet/mapkeeper/internal/client/auth"
	"github.com/iudanet/mapkeeper/internal/client/data"
	"github.com/iudanet/mapkeeper/internal/client/iocli"
	"github.com/iudanet/mapkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/mapkeeper/internal/client/sync"
)

const (
	defaultServerURL = "http://localhost:8080"
	defaultDBPath    = "mapkeeper-client.db"
)

// BuildInfo версия клиента, задается через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// Cli состояние одного запуска клиента.
// Хранилище и сервисы создаются перед выполнением команды и закрываются после.
type Cli struct {
	io          iocli.IO
	logger      *slog.Logger
	store       *boltdb.Storage
	apiClient   api.ClientAPI
	authService *auth.Service
	dataService *data.Service
	syncService *sync.Service
	newAPI      func(serverURL string) api.ClientAPI
	serverURL   string
	dbPath      string
	verbose     bool
}

// New создает клиент, который пишет и читает через io
func New(io iocli.IO) *Cli {
	return &Cli{
		io: io,
		newAPI: func(serverURL string) api.ClientAPI {
			return api.NewClient(serverURL)
		},
	}
}

// NewRootCmd собирает дерево команд
func (c *Cli) NewRootCmd(build BuildInfo) *cobra.Command {
	root := &cobra.Command{
		Use:           "mapkeeper",
		Short:         "Client for the mapkeeper element store",
		Long:          "Stage element drafts locally and upload them to a mapkeeper server as one atomic diff.",
		Version:       build.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.close()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("Mapkeeper Client\nVersion:    %s\nBuild Date: %s\nGit Commit: %s\n",
		build.Version, build.BuildDate, build.GitCommit))

	root.PersistentFlags().StringVar(&c.serverURL, "server", defaultServerURL, "server URL")
	root.PersistentFlags().StringVar(&c.dbPath, "db", defaultDBPath, "path to local database")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log client operations to stderr")

	root.AddCommand(
		c.registerCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.statusCmd(),
		c.changesetCmd(),
		c.stageCmd(),
		c.pendingCmd(),
		c.discardCmd(),
		c.uploadCmd(),
		c.getCmd(),
	)

	return root
}

// Execute выполняет команду и гарантирует закрытие хранилища при ошибке
func (c *Cli) Execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	// PersistentPostRunE не вызывается, если команда вернула ошибку
	if closeErr := c.close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *Cli) open(ctx context.Context, stderr io.Writer) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	c.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	store, err := boltdb.New(ctx, c.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.store = store

	c.apiClient = c.newAPI(c.serverURL)
	c.authService = auth.NewService(c.apiClient, store)
	c.dataService = data.NewService(store)
	c.syncService = sync.NewService(c.apiClient, store, c.logger)

	return nil
}

func (c *Cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// accessToken возвращает токен действующей сессии
func (c *Cli) accessToken(ctx context.Context) (string, error) {
	session, err := c.authService.Session(ctx)
	if err != nil {
		return "", err
	}
	return session.AccessToken, nil
}
