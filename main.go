package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quota-scraper/bot"
	"quota-scraper/config"
	"quota-scraper/logging"
	"quota-scraper/render"
	"quota-scraper/scraper"
	"quota-scraper/session"
	"quota-scraper/sheets"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath      string
	credentialsPath string

	cfg *config.Config
	log *zap.SugaredLogger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "quota-scraper",
		Short:         "Fetch team quotas from two pages and compare them",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			log, err = logging.New(cfg.Log.Level, cfg.Log.Development)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to configuration file")
	root.PersistentFlags().StringVar(&credentialsPath, "credentials", "", "Google service account credentials JSON file (or use GOOGLE_SHEETS_CREDENTIALS)")

	root.AddCommand(fetchCmd(), botCmd())
	return root
}

// fetchCmd runs one fetch and prints the result
func fetchCmd() *cobra.Command {
	var (
		first       bool
		second      bool
		comparative bool
		toSheet     bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch one or both pages and print the result",
		Long:  "Fetch one or both pages and print the result. Without --first or --second both pages are fetched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !first && !second {
				first, second = true, true
			}

			s, closeScraper, err := newScraper(cfg, log)
			if err != nil {
				return err
			}
			defer closeScraper()

			orch := session.NewOrchestrator(s, log,
				session.WithDisplayCap(cfg.Display.Cap),
				session.WithTimeout(cfg.Fetch.Timeout),
			)
			defer orch.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := orch.TriggerFetch(first, second); err != nil {
				return err
			}
			if err := orch.Wait(ctx); err != nil {
				return err
			}

			if comparative {
				if _, err := orch.ToggleMode(); err != nil {
					log.Warnf("Comparative view unavailable: %v", err)
				}
			}

			v := orch.View()
			if err := render.Console(cmd.OutOrStdout(), v, true); err != nil {
				return err
			}

			if toSheet && v.Session.HasData() {
				writeSheet(ctx, cmd, v)
			}

			if v.Session.Err != nil {
				return fmt.Errorf("fetch failed: %w", v.Session.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&first, "first", false, "fetch the first page")
	cmd.Flags().BoolVar(&second, "second", false, "fetch the second page")
	cmd.Flags().BoolVar(&comparative, "comparative", false, "show the comparative view (both pages only)")
	cmd.Flags().BoolVar(&toSheet, "sheet", false, "also write the result to a new Google Sheets tab")
	return cmd
}

func writeSheet(ctx context.Context, cmd *cobra.Command, v session.View) {
	writer, err := newSheetsWriter(ctx, cfg)
	if err != nil {
		log.Warnf("Failed to initialize Google Sheets writer: %v", err)
		return
	}

	sheetName := fmt.Sprintf("CLI_%s", time.Now().Format("20060102_150405"))
	_, sheetID, err := writer.CreateSheetAndWriteView(ctx, sheetName, v, cfg.Fetch.Mode)
	if err != nil {
		log.Warnf("Failed to write to Google Sheets: %v", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nWrote result to %s\n", writer.SheetURL(sheetID))
}

// botCmd serves the Telegram bot until interrupted
func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot (token from QUOTA_TG_TOKEN)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := os.Getenv("QUOTA_TG_TOKEN")
			if token == "" {
				return errors.New("QUOTA_TG_TOKEN environment variable is not set")
			}

			api, err := tgbotapi.NewBotAPI(token)
			if err != nil {
				return fmt.Errorf("failed to initialize bot: %w", err)
			}
			log.Infof("Authorized on account %s", api.Self.UserName)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			b := bot.New(api, cfg.Bot.AllowedUsers, cfg.Display.Cap, log)
			if cfg.Sheets.SpreadsheetURL != "" {
				writer, err := newSheetsWriter(ctx, cfg)
				if err != nil {
					log.Warnf("Google Sheets disabled: %v", err)
				} else {
					b.WithSheets(writer)
					log.Infof("Google Sheets writer initialized for %s", cfg.Sheets.SpreadsheetURL)
				}
			}

			s, closeScraper, err := newScraper(cfg, log)
			if err != nil {
				return err
			}
			defer closeScraper()

			orch := session.NewOrchestrator(s, log,
				session.WithDisplayCap(cfg.Display.Cap),
				session.WithTimeout(cfg.Fetch.Timeout),
				session.WithOnSettle(b.Notify),
			)
			defer orch.Close()
			b.Attach(orch)

			// Start from the latest update to skip old ones
			updateConfig := tgbotapi.NewUpdate(0)
			updateConfig.Timeout = 60
			updateConfig.Offset = -1
			updates := api.GetUpdatesChan(updateConfig)
			defer api.StopReceivingUpdates()

			log.Infof("Bot started, fetch mode %s", cfg.Fetch.Mode)
			b.Run(ctx, updates)
			log.Info("Bot stopped")
			return nil
		},
	}
}

// newScraper returns the fetch collaborator selected by fetch.mode and a func releasing it
func newScraper(cfg *config.Config, log *zap.SugaredLogger) (scraper.Scraper, func(), error) {
	if cfg.Fetch.Mode == config.ModeRemote {
		log.Infof("Using remote scrape service at %s", cfg.Fetch.RemoteURL)
		return scraper.NewRemoteScraper(cfg.Fetch.RemoteURL, cfg.Fetch.Timeout, log), func() {}, nil
	}

	ps, err := scraper.NewPageScraperFromConfig(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scraper: %w", err)
	}
	return ps, func() {
		if err := ps.Close(); err != nil {
			log.Warnf("Failed to close scraper: %v", err)
		}
	}, nil
}

func newSheetsWriter(ctx context.Context, cfg *config.Config) (*sheets.Writer, error) {
	spreadsheetID := sheets.ExtractSpreadsheetID(cfg.Sheets.SpreadsheetURL)
	if spreadsheetID == "" {
		return nil, fmt.Errorf("could not extract spreadsheet ID from URL: %q", cfg.Sheets.SpreadsheetURL)
	}
	return sheets.NewWriter(ctx, spreadsheetID, credentialsPath, log)
}
