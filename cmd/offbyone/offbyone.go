// Command offbyone runs the OffByOne Discord bot: gateway connection,
// background pollers, and the status HTTP server, all against a single
// sqlite database.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/offbyone-dev/offbyone/internal/api"
	"github.com/offbyone-dev/offbyone/internal/bot"
	"github.com/offbyone-dev/offbyone/internal/cogs"
	"github.com/offbyone-dev/offbyone/internal/config"
	"github.com/offbyone-dev/offbyone/internal/db"
	"github.com/offbyone-dev/offbyone/internal/github"
	"github.com/offbyone-dev/offbyone/internal/monitoring"
	"github.com/offbyone-dev/offbyone/internal/tasks"
	"github.com/offbyone-dev/offbyone/internal/updates"
)

var (
	listenFlag = flag.String("listen", "", "Status API listen address (overrides LISTEN)")
	dbFlag     = flag.String("db", "", "Database file path (overrides DB_PATH)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *listenFlag != "" {
		cfg.Listen = *listenFlag
	}
	if *dbFlag != "" {
		cfg.DBPath = *dbFlag
	}

	// `offbyone migrate <cmd>` manages the schema without starting the
	// bot.
	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		db.RunMigrateCommand(args[1:], cfg.DBPath)
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logCloser, err := monitoring.Setup(cfg.LogDir, cfg.Dev())
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		monitoring.Errorf("failed to open database: %v", err)
		os.Exit(1)
	}
	defer database.Close()

	forms, err := config.LoadFormSet(cfg.FormsPath)
	if err != nil {
		monitoring.Errorf("failed to load application forms: %v", err)
		os.Exit(1)
	}
	snippets, err := config.LoadSnippetLibrary(cfg.SnippetsPath)
	if err != nil {
		monitoring.Errorf("failed to load snippet library: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := updates.NewBus()
	defer bus.Close()

	gh := github.NewClient(nil, cfg.GitHubToken)
	repoPoller := tasks.NewRepoPoller(database, gh, bus, nil, cfg.RepoPollInterval)

	rolesCog := cogs.NewRoles(database)
	updaterCog := cogs.NewUpdater(bus, nil)

	core := []bot.Cog{
		cogs.NewModeration(nil),
		rolesCog,
		cogs.NewApplications(database, forms, rolesCog, nil),
	}
	feature := []bot.Cog{
		cogs.NewToggles(database),
		cogs.NewHooks(database),
		updaterCog,
		cogs.NewMemes(database, nil, cfg.AssetsDir),
		cogs.NewCodingHelp(snippets),
		cogs.NewCrossposter(),
	}

	b, err := bot.New(cfg, database, core, feature)
	if err != nil {
		monitoring.Errorf("failed to create bot: %v", err)
		os.Exit(1)
	}

	channelPoller := tasks.NewChannelPoller(database, b.Session(), bus, nil, cfg.ChannelPollInterval)
	notifier := tasks.NewPendingNotifier(database, b.Session(), nil, cfg.NotifyInterval)

	// The !update command pokes both pollers.
	updaterCog.SetForcePoll(func() {
		repoPoller.Poke()
		channelPoller.Poke()
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.Start(ctx) })

	g.Go(func() error {
		repoPoller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		channelPoller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		notifier.Run(ctx)
		return nil
	})
	g.Go(func() error {
		updaterCog.Run(ctx, b.Session())
		return nil
	})

	// Hot reload of forms and snippets on file change.
	g.Go(func() error {
		return config.Watch(ctx, cfg.FormsPath, func() {
			if err := forms.Reload(); err != nil {
				monitoring.Errorf("failed to reload forms: %v", err)
				return
			}
			monitoring.Logf("reloaded application forms")
		})
	})
	g.Go(func() error {
		return config.Watch(ctx, cfg.SnippetsPath, func() {
			if err := snippets.Reload(); err != nil {
				monitoring.Errorf("failed to reload snippets: %v", err)
				return
			}
			monitoring.Logf("reloaded snippet library")
		})
	})

	// Status HTTP server.
	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: api.NewServer(database, nil, cfg.Env).Handler(),
	}
	g.Go(func() error {
		monitoring.Logf("status API listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	monitoring.Logf("offbyone running (env=%s)", cfg.Env)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		monitoring.Errorf("shutting down with error: %v", err)
		os.Exit(1)
	}
	monitoring.Logf("shutdown complete")
}
