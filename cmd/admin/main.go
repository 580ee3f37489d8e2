// Package main provides the community admin CLI (migrations, owner bootstrap, roles, job queue).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aura-community/backend/config"
	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/permissions"
	"github.com/aura-community/backend/internal/points"
	"github.com/aura-community/backend/pkg/database"
	"github.com/aura-community/backend/pkg/queue"
	"github.com/aura-community/backend/pkg/redis"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "hearth-admin",
		Short:         "Administer a Hearth community database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log connection and migration details")

	logger := func() *zap.Logger {
		if verbose {
			l, _ := zap.NewDevelopment()
			return l
		}
		return zap.NewNop()
	}

	cmd.AddCommand(migrateCmd(logger), createOwnerCmd(logger), setRoleCmd(logger), recomputeLevelsCmd(logger), jobsCmd(logger))
	return cmd
}

func migrateCmd(logger func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), logger(), func(ctx context.Context, pool *pgxpool.Pool) error {
				if err := database.Migrate(ctx, pool, logger()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func createOwnerCmd(logger func() *zap.Logger) *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "create-owner",
		Short: "Create the community owner account",
		Long: `Create the single owner account. Fails if an owner already exists.

Example:
  hearth-admin create-owner --email owner@example.com --password s3cret-pass --name "Ada Lovelace"
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), logger(), func(ctx context.Context, pool *pgxpool.Pool) error {
				u, err := auth.NewRepository(pool).CreateWithRole(ctx, email, hash, name, permissions.RoleOwner)
				if err != nil {
					return fmt.Errorf("create owner: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "owner %s created (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Owner email")
	cmd.Flags().StringVar(&password, "password", "", "Owner password")
	cmd.Flags().StringVar(&name, "name", "Owner", "Owner display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setRoleCmd(logger func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <role>",
		Short: "Set a member's role (member, moderator, admin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseAssignable(args[1])
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), logger(), func(ctx context.Context, pool *pgxpool.Pool) error {
				u, err := auth.NewRepository(pool).SetRole(ctx, args[0], role)
				if err != nil {
					return fmt.Errorf("set role: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", u.Email, u.Role)
				return nil
			})
		},
	}
}

func recomputeLevelsCmd(logger func() *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-levels",
		Short: "Recalculate every member's level from their points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), logger(), func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := points.NewRepository(pool).RecomputeLevels(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d members updated\n", n)
				return nil
			})
		},
	}
}

func jobsCmd(logger func() *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the email job queue",
	}

	var limit int64
	list := &cobra.Command{
		Use:   "dead",
		Short: "List dead-lettered jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd.Context(), logger(), func(ctx context.Context, q *queue.Queue) error {
				waiting, err := q.Depth(ctx, queue.QueueEmails)
				if err != nil {
					return err
				}
				dead, err := q.DeadLetters(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d email jobs waiting, %d dead shown\n", waiting, len(dead))
				for _, j := range dead {
					fmt.Fprintf(out, "%s  %s  attempts=%d  %s\n", j.ID, j.CreatedAt.Format(time.RFC3339), j.Attempt, j.LastError)
				}
				return nil
			})
		},
	}
	list.Flags().Int64Var(&limit, "limit", 50, "Maximum jobs to show")

	var maxJobs int
	requeue := &cobra.Command{
		Use:   "requeue",
		Short: "Move dead-lettered jobs back to their queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(cmd.Context(), logger(), func(ctx context.Context, q *queue.Queue) error {
				n, err := q.RequeueDead(ctx, maxJobs)
				fmt.Fprintf(cmd.OutOrStdout(), "%d jobs requeued\n", n)
				return err
			})
		},
	}
	requeue.Flags().IntVar(&maxJobs, "max", 100, "Maximum jobs to move")

	cmd.AddCommand(list, requeue)
	return cmd
}

// parseAssignable rejects the owner role; ownership changes only through create-owner.
func parseAssignable(s string) (permissions.Role, error) {
	role := permissions.ParseRole(s)
	if !role.Valid() || role == permissions.RoleOwner {
		return permissions.RoleNone, fmt.Errorf("invalid role %q: want member, moderator or admin", s)
	}
	return role, nil
}

func withQueue(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context, q *queue.Queue) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()
	return fn(ctx, queue.NewQueue(rdb.Client, logger))
}

func withPool(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: 2}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}
