package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"meetsync/internal/attendees"
	"meetsync/internal/caldav"
	"meetsync/internal/config"
	"meetsync/internal/dispatch"
	"meetsync/internal/enrich"
	"meetsync/internal/google"
	"meetsync/internal/identity"
	"meetsync/internal/models"
	"meetsync/internal/routing"
	"meetsync/internal/syncer"
	"meetsync/internal/vault"
	"meetsync/internal/webhook"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "meetsync",
		Usage: "Converge calendar meetings and transcript webhooks onto canonical vault notes.",
		Commands: []*cli.Command{
			authCommand(),
			scanCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			config, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(config, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Run the meeting-to-note convergence process.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the scan cycle once and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would change without touching the vault."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run a scan every N seconds. Overrides --once."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			cfg.DryRun = c.Bool("dry-run")
			if cfg.DryRun {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			s, err := buildSyncer(c.Context, cfg, logger)
			if err != nil {
				return err
			}

			interval, watch := scanMode(c)
			if !watch {
				logger.Info("Running a single scan cycle.")
				if err := s.Scan(c.Context); err != nil {
					return fmt.Errorf("single scan cycle failed: %w", err)
				}
				return nil
			}

			logger.Info("Starting watcher.", "interval", interval)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for ; true; <-ticker.C {
				if err := s.Scan(c.Context); err != nil {
					logger.Error("Scan cycle failed", "error", err)
				}
			}
			return nil
		},
	}
}

// scanMode decides between a single scan cycle and a ticker loop.
// --once always wins; without it, --watch selects the loop, and a single
// cycle is the default.
func scanMode(c *cli.Context) (time.Duration, bool) {
	if c.Bool("once") || !c.IsSet("watch") {
		return 0, false
	}
	return time.Duration(c.Int("watch")) * time.Second, true
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the transcript webhook listener, optionally with periodic scans.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "watch", Usage: "Also run a scan every N seconds."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := setupServiceLogger(cfg.LogLevel)

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			s, err := buildSyncer(ctx, cfg, logger)
			if err != nil {
				return err
			}

			server := webhook.NewServer(logger, s, cfg.WebhookToken, nil)
			addr := cfg.Bind + ":" + cfg.Port
			if cfg.Bind == "*" {
				addr = ":" + cfg.Port
			}
			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 3 * time.Second,
			}

			go func() {
				logger.Info("Webhook listener starting.", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("http listener error", "error", err)
					os.Exit(1)
				}
			}()

			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting scan watcher.", "interval", interval)
				go func() {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for ; true; <-ticker.C {
						if ctx.Err() != nil {
							return
						}
						if err := s.Scan(ctx); err != nil {
							logger.Error("Scan cycle failed", "error", err)
						}
					}
				}()
			}

			// Support graceful shutdown.
			done := make(chan os.Signal, 1)
			signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
			<-done

			logger.Info("Beginning graceful shutdown.")
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("http listener error on shutdown", "error", err)
			}
			return nil
		},
	}
}

// combinedSource aggregates the configured calendar sources behind the
// single-source interface identity resolution expects. A failing source
// degrades to an empty contribution; only total failure is an error.
type combinedSource struct {
	logger  *slog.Logger
	sources []syncer.CalendarSource
}

func (m *combinedSource) GetEvents(ctx context.Context, start, end time.Time) ([]*models.Event, error) {
	var all []*models.Event
	var lastErr error
	for _, source := range m.sources {
		events, err := source.GetEvents(ctx, start, end)
		if err != nil {
			m.logger.Error("Could not fetch events from a calendar source", "error", err)
			lastErr = err
			continue
		}
		all = append(all, events...)
	}
	if all == nil && lastErr != nil {
		return nil, lastErr
	}
	return all, nil
}

// buildSyncer wires the full pipeline from configuration.
func buildSyncer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*syncer.Syncer, error) {
	var sources []syncer.CalendarSource

	accounts, err := google.GetTokenAccounts()
	if err != nil {
		return nil, fmt.Errorf("could not look for google accounts: %w", err)
	}
	for _, acc := range accounts {
		gClient, err := google.NewClient(ctx, logger, cfg.GoogleClientID, cfg.GoogleClientSecret, acc, cfg.GoogleCalendarIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to create google client for account %s: %w", acc, err)
		}
		sources = append(sources, gClient)
	}

	if cfg.CalDAVEndpoint != "" {
		cClient, err := caldav.NewClient(logger, cfg.CalDAVEndpoint, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)
		if err != nil {
			return nil, fmt.Errorf("failed to create caldav client: %w", err)
		}
		sources = append(sources, cClient)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no calendar sources configured. Run the 'auth' command or set CALDAV_ENDPOINT")
	}
	combined := &combinedSource{logger: logger, sources: sources}

	store, err := vault.NewFS(cfg.VaultDir)
	if err != nil {
		return nil, err
	}
	repo, err := vault.NewRepository(store, logger)
	if err != nil {
		return nil, err
	}

	rules, err := routing.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	router := routing.NewResolver(routing.Config{
		RootFolder:          cfg.MeetingsFolder,
		DefaultMaxAttendees: cfg.DefaultMaxAttendees,
		Rules:               rules,
	})

	var enricher syncer.Enricher
	if cfg.AnthropicAPIKey != "" {
		client, err := enrich.NewClient(enrich.Config{
			APIKey:             cfg.AnthropicAPIKey,
			Model:              cfg.Model,
			MaxConcurrentCalls: cfg.Concurrency,
		}, logger)
		if err != nil {
			return nil, err
		}
		enricher = client
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, running without enrichment.")
	}

	return syncer.New(
		logger,
		[]syncer.CalendarSource{combined},
		identity.NewResolver(combined, logger),
		router,
		repo,
		enricher,
		dispatch.New(logger),
		syncer.Config{
			ScanWindowDays:   cfg.ScanWindowDays,
			Concurrency:      cfg.Concurrency,
			MinBatchInterval: cfg.MinBatchInterval,
			WorkerTimeout:    cfg.WorkerTimeout,
			FilterRules:      attendees.FilterRules{ExcludeSubstrings: cfg.ExcludeAttendees},
			DryRun:           cfg.DryRun,
		},
	), nil
}

func setupLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(level)}))
}

// setupServiceLogger emits JSON, which is what log shippers expect from the
// long-running webhook service.
func setupServiceLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(level)}))
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
