package main

import (
	"context"
	"fmt"

	"github.com/obentoo/geodash/internal/common/config"
	"github.com/obentoo/geodash/internal/common/httpclient"
	"github.com/obentoo/geodash/internal/common/logger"
	"github.com/obentoo/geodash/internal/server"
	"github.com/obentoo/geodash/internal/server/users"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	serveAddr      string
	serveUsersFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auth API",
	Long: `Run the auth API the dashboard signs in against. Accounts are seeded at
start from server.users_file, or the two demo accounts when none is set.
The server stops gracefully on SIGINT or SIGTERM.`,
	Example: `  geodash serve
  geodash serve --addr :9000 --users ./users.toml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveUsersFile != "" {
			cfg.Server.UsersFile = serveUsersFile
		}
		defer logger.Default().Close()
		return runServe(cmd.Context(), cfg, bcrypt.DefaultCost)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveUsersFile, "users", "", "TOML users file (overrides server.users_file)")

	rootCmd.AddCommand(serveCmd)
}

// loadSeeds returns the accounts named by the users file, or the demo accounts
func loadSeeds(cfg *config.Config) ([]users.Seed, error) {
	if cfg.Server.UsersFile == "" {
		return users.DefaultSeeds(), nil
	}
	path, err := config.ExpandHome(cfg.Server.UsersFile)
	if err != nil {
		return nil, err
	}
	return users.LoadSeedFile(path)
}

// openRepository creates the user store and seeds it
func openRepository(ctx context.Context, cfg *config.Config, cost int) (users.Repository, error) {
	seeds, err := loadSeeds(cfg)
	if err != nil {
		return nil, err
	}
	prepared, err := users.Prepare(seeds, cost)
	if err != nil {
		return nil, err
	}

	repo, err := users.Open(cfg.Server.UserStore, cfg.Server.SQLiteDSN)
	if err != nil {
		return nil, fmt.Errorf("opening user store: %w", err)
	}
	if err := repo.Seed(ctx, prepared); err != nil {
		repo.Close()
		return nil, fmt.Errorf("seeding users: %w", err)
	}
	logger.Info("seeded %d users into the %s store", len(prepared), cfg.Server.UserStore)
	return repo, nil
}

func runServe(ctx context.Context, cfg *config.Config, cost int) error {
	repo, err := openRepository(ctx, cfg, cost)
	if err != nil {
		return err
	}
	defer repo.Close()

	srv, err := server.New(repo, server.Options{
		Addr:      cfg.Server.Addr,
		Secret:    []byte(httpclient.SubstituteEnvVars(cfg.Server.JWTSecret)),
		TokenTTL:  cfg.TokenTTL(),
		Metrics:   cfg.Server.Metrics,
		LoginRate: cfg.Server.LoginRate,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
