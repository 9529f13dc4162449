package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"match-intel-api/internal/config"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/infrastructure/eino/callback"
	"match-intel-api/internal/infrastructure/persistence/postgres"
	"match-intel-api/internal/wire"
	"match-intel-api/pkg/logger"
	"match-intel-api/pkg/utils"
)

func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Observability.Logging.Level, "text")
	return cfg, nil
}

// withServices 加载配置并初始化服务容器
func withServices(dir string, fn func(ctx context.Context, svc *wire.Services) error) error {
	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	callback.Init()

	ctx := context.Background()
	svc, cleanup, err := wire.InitializeServices(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer cleanup()
	return fn(ctx, svc)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCMD(configDir *string) *cobra.Command {
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}
			if err := postgres.Migrate(cfg.Database.Postgres.URL(), direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s done\n", direction)
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}

func regenerateCMD(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <segment|match> <id>",
		Short: "Regenerate a cached artifact now, skipping the queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := entity.ParseScopeType(args[0])
			if err != nil {
				return err
			}
			return withServices(*configDir, func(ctx context.Context, svc *wire.Services) error {
				res, err := svc.Insight.RegenerateScope(ctx, scope, args[1])
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
}

func reconcileCMD(configDir *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair scopes holding more than one active artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(*configDir, func(ctx context.Context, svc *wire.Services) error {
				results, err := svc.Insight.ReconcileAll(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "repaired %d scopes\n", len(results))
				return printJSON(results)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum scopes to repair")
	return cmd
}

func backfillCMD(configDir *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Embed notes that are missing a vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(*configDir, func(ctx context.Context, svc *wire.Services) error {
				res, err := svc.Narration.Backfill(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum notes per run")
	return cmd
}

func tokenCMD(configDir *string) *cobra.Command {
	var userID, orgID, role, teamID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configDir)
			if err != nil {
				return err
			}
			if !entity.UserRole(role).Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			m := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer)
			token, err := m.GenerateToken(userID, orgID, role, teamID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (sub)")
	cmd.Flags().StringVar(&orgID, "org", "", "organisation id")
	cmd.Flags().StringVar(&role, "role", "analyst", "role")
	cmd.Flags().StringVar(&teamID, "team", "", "team id")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
