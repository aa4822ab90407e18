package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"thrive/internal/config"
	"thrive/internal/db"
	"thrive/pkg/achievement"
	"thrive/pkg/activity"
	"thrive/pkg/dashboard"
	"thrive/pkg/lifecycle"
	"thrive/pkg/task"
	"thrive/pkg/user"
)

var Version = "dev"

// app holds the Postgres-backed services a command runs against.
type app struct {
	pool     *pgxpool.Pool
	cfg      *config.Config
	tasks    *task.PgStore
	users    *user.PgStore
	activity *activity.PgStore
	engine   *achievement.Engine
	svc      *lifecycle.Service
	dash     *dashboard.Aggregator
}

func (a *app) Close() { a.pool.Close() }

var configPath string

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "thrivectl",
		Short:         "thrivectl - administer goals, users and achievements",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(badgesCmd())
	rootCmd.AddCommand(activityCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "thrivectl: %v\n", err)
		os.Exit(1)
	}
}

func open(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		pool.Close()
		return nil, err
	}
	a := &app{
		pool:     pool,
		cfg:      cfg,
		tasks:    task.NewPgStore(pool),
		users:    user.NewPgStore(pool),
		activity: activity.NewPgStore(pool),
	}
	a.engine = achievement.New(a.users, a.tasks, a.activity, achievement.WithLocation(loc))
	a.svc = lifecycle.New(a.tasks, a.users, a.engine, a.activity)
	a.dash = dashboard.New(a.tasks, cfg.PublicTaskLimit)
	return a, nil
}

// run opens the app, runs fn and prints its result as JSON.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) (any, error)) error {
	ctx := cmd.Context()
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	v, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd, v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.users.EnsureTable(ctx); err != nil {
					return nil, fmt.Errorf("ensure users table: %w", err)
				}
				if err := a.tasks.EnsureTable(ctx); err != nil {
					return nil, fmt.Errorf("ensure tasks table: %w", err)
				}
				if err := a.activity.EnsureTable(ctx); err != nil {
					return nil, fmt.Errorf("ensure activity table: %w", err)
				}
				return map[string]string{"status": "ok", "message": "all tables initialized"}, nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User operations (register, show, list)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <username>",
		Short: "Register a user, or return the existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.users.Register(ctx, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a user's XP, badges and streaks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.users.Get(ctx, args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.users.List(ctx)
			})
		},
	})
	return cmd
}

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task operations (create, invite, complete)",
	}

	var owner, visibility string
	create := &cobra.Command{
		Use:   "create <content>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.svc.CreateTask(ctx, owner, args[0], task.Visibility(visibility))
			})
		},
	}
	create.Flags().StringVar(&owner, "owner", "", "owner user ID")
	create.Flags().StringVar(&visibility, "visibility", string(task.Private), "private or public")
	create.MarkFlagRequired("owner")
	cmd.AddCommand(create)

	var inviter string
	invite := &cobra.Command{
		Use:   "invite <task-id> <username>",
		Short: "Invite a user to collaborate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.svc.InviteCollaborator(ctx, args[0], inviter, args[1])
			})
		},
	}
	invite.Flags().StringVar(&inviter, "as", "", "owner user ID")
	invite.MarkFlagRequired("as")
	cmd.AddCommand(invite)

	var completer string
	complete := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task completed and grant rewards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				done := true
				return a.svc.UpdateTask(ctx, args[0], completer, lifecycle.Patch{IsCompleted: &done})
			})
		},
	}
	complete.Flags().StringVar(&completer, "as", "", "owner or collaborator user ID")
	complete.MarkFlagRequired("as")
	cmd.AddCommand(complete)

	return cmd
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard <user-id>",
		Short: "Show a user's dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.dash.Get(ctx, args[0])
			})
		},
	}
}

func badgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Badge operations (list, check)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the badge catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, achievement.DefaultCatalog().All())
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check <user-id>",
		Short: "Evaluate and grant any badges the user qualifies for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.engine.CheckAndAwardBadges(ctx, args[0])
			})
		},
	})
	return cmd
}

func activityCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity <user-id>",
		Short: "Show a user's recent activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.activity.Recent(ctx, args[0], limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries")
	return cmd
}
