package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/prettylog/blogpipe/internal/cache"
	"github.com/prettylog/blogpipe/internal/config"
	"github.com/prettylog/blogpipe/internal/extractor"
	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/internal/objectstore"
	"github.com/prettylog/blogpipe/internal/pipeline"
	"github.com/prettylog/blogpipe/internal/store"
)

const (
	runLockTTL   = 10 * time.Minute
	processedTTL = 30 * 24 * time.Hour
)

// NewRunCommand constructs the `run` command, which publishes a content
// folder once and prints the report.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Publish every markdown file below dir (default: pipeline.content_dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if w, _ := cmd.Flags().GetInt("workers"); cmd.Flags().Changed("workers") {
				cfg.Pipeline.Workers = w
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			logger := cfg.Log.NewLogger()
			slog.SetDefault(logger)

			dir := cfg.Pipeline.ContentDir
			if len(args) == 1 {
				dir = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")

			ctx := cmd.Context()
			runner, cleanup, err := buildRunner(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()
			runner.Force = force

			report, err := runner.Run(ctx, dir)
			if err != nil {
				return err
			}
			b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d articles failed", report.Failed, report.Found)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "republish articles whose content was already published")
	cmd.Flags().Int("workers", 4, "concurrent articles")
	return cmd
}

// NewMigrateCommand constructs the `migrate` command.
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("DB_URL must be set")
			}
			db, err := store.Open(cmd.Context(), cfg.Postgres.URL, nil)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func buildRunner(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Runner, func(), error) {
	if cfg.Postgres.URL == "" {
		return nil, nil, fmt.Errorf("DB_URL must be set")
	}
	ids, err := gid.NewGenerator(cfg.Snowflake.MachineID)
	if err != nil {
		return nil, nil, err
	}
	db, err := store.Open(ctx, cfg.Postgres.URL, ids)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{db.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}
	if err := db.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	runner := &pipeline.Runner{
		IDs:       ids,
		Extractor: extractor.Chain{extractor.Frontmatter{}},
		Objects:   objectstore.NewLocal(cfg.Pipeline.UploadDir, cfg.Pipeline.PublicBaseURL),
		Repo:      pipeline.StoreRepository{Store: db},
		UserID:    cfg.Pipeline.DefaultUserID,
		Workers:   cfg.Pipeline.Workers,
		Logger:    logger,
	}
	if cfg.Redis.Addr != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, client.Close)
		runner.Processed = cache.NewProcessed(client, processedTTL)
		runner.Lock = cache.NewRunLock(client, runLockTTL)
	}
	return runner, cleanup, nil
}
