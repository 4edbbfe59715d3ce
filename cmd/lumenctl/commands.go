package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"lumen-backend/internal/config"
	"lumen-backend/internal/database"
	"lumen-backend/internal/logger"
	"lumen-backend/internal/repositories"
	"lumen-backend/internal/services"
)

// env is what every command needs: configuration, a logger and Postgres.
type env struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func setup(ctx context.Context) (*env, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Log, "lumenctl")
	if err != nil {
		return nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, err
	}
	return &env{cfg: cfg, log: log, pool: pool}, func() {
		pool.Close()
		_ = log.Sync()
	}, nil
}

// quietNotifier drops notifications raised by maintenance commands.
type quietNotifier struct{}

func (quietNotifier) Notify(context.Context, uuid.UUID, string, string, string, map[string]any) {}

func newMigrateCmd() *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if create {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				log, err := logger.New(cfg.Log, "lumenctl")
				if err != nil {
					return err
				}
				if err := database.EnsureDatabaseExists(ctx, cfg.Database, log); err != nil {
					return err
				}
			}
			e, done, err := setup(ctx)
			if err != nil {
				return err
			}
			defer done()
			return database.RunMigrations(ctx, e.pool, e.log)
		},
	}
	cmd.Flags().BoolVar(&create, "create-db", false, "create the database first using DB_ADMIN_USER")
	return cmd
}

func newPromoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Give an existing user the admin role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, done, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			users := services.NewUserService(repositories.NewUserRepository(e.pool), quietNotifier{}, e.log)
			u, err := users.Promote(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", u.Email, u.ID, u.Role)
			return nil
		},
	}
}

type giftSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	IconURL     string `yaml:"icon_url"`
	PriceCents  int64  `yaml:"price_cents"`
}

var defaultGifts = []giftSeed{
	{Name: "Candle", Description: "A small light for your reader", PriceCents: 100},
	{Name: "Crystal", Description: "Clear quartz for clear sight", PriceCents: 500},
	{Name: "Moon", Description: "A full moon of thanks", PriceCents: 1000},
	{Name: "Comet", Description: "For a reading that changed everything", PriceCents: 5000},
}

func loadGiftSeeds(path string) ([]giftSeed, error) {
	if path == "" {
		return defaultGifts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seeds []giftSeed
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return seeds, nil
}

func newSeedGiftsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-gifts",
		Short: "Create the virtual gift catalog; existing names are skipped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seeds, err := loadGiftSeeds(file)
			if err != nil {
				return err
			}
			e, done, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			ctx := cmd.Context()
			gifts := services.NewGiftService(repositories.NewGiftRepository(e.pool), nil, nil, quietNotifier{}, nil,
				e.cfg.Marketplace, e.log)
			existing, err := gifts.Catalog(ctx, false)
			if err != nil {
				return err
			}
			have := make(map[string]bool, len(existing))
			for _, g := range existing {
				have[strings.ToLower(g.Name)] = true
			}

			created := 0
			for _, s := range seeds {
				if have[strings.ToLower(s.Name)] {
					continue
				}
				if _, err := gifts.Create(ctx, services.GiftRequest{
					Name:        s.Name,
					Description: s.Description,
					IconURL:     s.IconURL,
					PriceCents:  s.PriceCents,
				}); err != nil {
					return fmt.Errorf("create %q: %w", s.Name, err)
				}
				created++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d gifts, %d already present\n", created, len(seeds)-created)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML list of gifts (name, description, icon_url, price_cents)")
	return cmd
}

func newRebuildLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-leaderboard",
		Short: "Recompute the all-time gift leaderboard in Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, done, err := setup(ctx)
			if err != nil {
				return err
			}
			defer done()

			rdb, err := database.ConnectRedis(ctx, e.cfg.Redis, e.log)
			if err != nil {
				return err
			}
			defer rdb.Close()

			gifts := services.NewGiftService(repositories.NewGiftRepository(e.pool), nil,
				repositories.NewRedisRepository(rdb), quietNotifier{}, nil, e.cfg.Marketplace, e.log)
			n, err := gifts.RebuildLeaderboard(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "leaderboard rebuilt with %d readers\n", n)
			return nil
		},
	}
}
