package main

import (
	"context"
	"fmt"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/JakeFAU/newsdigest/internal/config"
	"github.com/JakeFAU/newsdigest/internal/server"
)

func registerCommands(parser *flags.Parser, global *globalOptions) {
	commands := []struct {
		name, short, long string
		data              flags.Commander
	}{
		{"serve", "Run the HTTP API", "Serve the HTTP API and the configured platform hook until interrupted.",
			&serveCommand{global: global}},
		{"crawl", "Crawl sources once", "Crawl the source catalog, upsert new items and queue them for summarization.",
			&crawlCommand{global: global}},
		{"prioritize", "Queue unsummarized items", "Score every unsummarized item and push it onto the queue.",
			&prioritizeCommand{global: global}},
		{"summarize", "Summarize queued items", "Process one batch from the queue, or keep draining it with --continuous.",
			&summarizeCommand{global: global}},
		{"cleanup", "Delete old items", "Delete items older than --days by crawl date, or by publish date.",
			&cleanupCommand{global: global}},
		{"migrate", "Apply the database schema", "Apply the embedded migrations to the configured SQL store.",
			&migrateCommand{global: global}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.long, c.data); err != nil {
			panic(fmt.Sprintf("register %s command: %v", c.name, err))
		}
	}
}

type serveCommand struct {
	global *globalOptions
}

func (c *serveCommand) Execute(_ []string) error {
	return runApp(c.global, func(ctx context.Context, app *server.App, _ *zap.Logger) error {
		return app.Run(ctx)
	})
}

type crawlCommand struct {
	global      *globalOptions
	Domains     []string `short:"d" long:"domain" description:"Domain to crawl; repeat for several (default: whole catalog)"`
	Concurrency int      `long:"concurrency" default:"3" description:"Domains fetched in parallel (1-10)"`
}

func (c *crawlCommand) Execute(_ []string) error {
	return runApp(c.global, func(ctx context.Context, app *server.App, logger *zap.Logger) error {
		res, err := app.Crawler().Run(ctx, c.Domains, c.Concurrency)
		logger.Info("crawl finished",
			zap.Int("upserted", res.Upserted),
			zap.Int("queued", res.Queued),
			zap.Int("removed", res.Removed),
		)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
		return nil
	})
}

type prioritizeCommand struct {
	global *globalOptions
}

func (c *prioritizeCommand) Execute(_ []string) error {
	return runApp(c.global, func(ctx context.Context, app *server.App, logger *zap.Logger) error {
		queued, err := app.Prioritizer().Prioritize(ctx)
		if err != nil {
			return fmt.Errorf("prioritize: %w", err)
		}
		logger.Info("prioritize finished", zap.Int("queued", queued))
		return nil
	})
}

type summarizeCommand struct {
	global      *globalOptions
	Concurrency int  `long:"concurrency" default:"1" description:"Items summarized in parallel (1-5)"`
	Continuous  bool `long:"continuous" description:"Keep draining the queue until interrupted"`
	NoRetry     bool `long:"no-retry" description:"Skip requeueing the failed set before the batch"`
}

func (c *summarizeCommand) Execute(_ []string) error {
	return runApp(c.global, func(ctx context.Context, app *server.App, logger *zap.Logger) error {
		pool, err := app.Summarizer()
		if err != nil {
			return err
		}
		if c.Continuous {
			return pool.Run(ctx)
		}
		if !c.NoRetry {
			requeued, dropped, err := pool.RetryFailed(ctx)
			if err != nil {
				logger.Warn("retry housekeeping failed", zap.Error(err))
			}
			logger.Info("failed set processed", zap.Int("requeued", requeued), zap.Int("dropped", dropped))
		}
		processed, err := pool.RunOnce(ctx, c.Concurrency)
		if err != nil {
			return fmt.Errorf("summarize: %w", err)
		}
		logger.Info("summarize finished", zap.Int("processed", processed))
		return nil
	})
}

type cleanupCommand struct {
	global    *globalOptions
	Days      int  `long:"days" default:"30" description:"Delete items older than this many days"`
	ByPublish bool `long:"by-publish" description:"Compare against publish date instead of crawl date"`
}

func (c *cleanupCommand) Execute(_ []string) error {
	return runApp(c.global, func(ctx context.Context, app *server.App, logger *zap.Logger) error {
		deleted, err := app.Cleanup(ctx, c.Days, c.ByPublish)
		if err != nil {
			return err
		}
		logger.Info("cleanup finished", zap.Int("deleted", deleted), zap.Int("days", c.Days))
		return nil
	})
}

type migrateCommand struct {
	global *globalOptions
}

func (c *migrateCommand) Execute(_ []string) error {
	cfg, err := config.Load(c.global.Config)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	version, err := server.Migrate(cfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}
