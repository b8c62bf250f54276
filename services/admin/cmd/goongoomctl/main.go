package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"goongoom/pkg/config"
	"goongoom/pkg/db"
	"goongoom/services/qna"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "goongoomctl",
		Short:         "Operator utility for the goongoom question-and-answer service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")

	cmd.AddCommand(newMigrateCommand(&configPath))
	cmd.AddCommand(newBackfillCommand(&configPath))
	return cmd
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, _, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newBackfillCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Repair jobs for denormalized answer data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBackfillAnswerNumbersCommand(configPath))
	cmd.AddCommand(newBackfillUnansweredCommand(configPath))
	cmd.AddCommand(newBackfillStatsCommand(configPath))
	return cmd
}

func newBackfillAnswerNumbersCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "answer-numbers",
		Short: "Recompute answer ordinals and recipient counters from answer history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, service, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := service.BackfillAnswerNumbers(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recipients: %d\n", report.Recipients)
			fmt.Fprintf(out, "questions patched: %d\n", report.UpdatedQuestions)
			fmt.Fprintf(out, "counters patched: %d\n", report.UpdatedUsers)
			for _, failure := range report.Failed {
				fmt.Fprintf(out, "failed recipient %s: %v\n", failure.RecipientID, failure.Err)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d recipients failed", len(report.Failed))
			}
			return nil
		},
	}
}

func newBackfillUnansweredCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unanswered",
		Short: "Clear stale answer metadata from unanswered questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, service, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			patched, err := service.BackfillUnanswered(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "questions normalized: %d\n", patched)
			return nil
		},
	}
}

func newBackfillStatsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Recount answers into the global stats row",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, pool, service, err := openService(cmd, *configPath)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := service.BackfillAnswerStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "answers counted: %d\n", count)
			return nil
		},
	}
}

func openService(cmd *cobra.Command, configPath string) (context.Context, *pgxpool.Pool, *qna.Service, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	pool, err := db.Open(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}

	store, err := qna.NewPG(pool)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	return ctx, pool, qna.NewService(store), nil
}
