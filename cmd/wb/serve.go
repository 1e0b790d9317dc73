package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/waybill/internal/config"
	"github.com/zulandar/waybill/internal/db"
	"github.com/zulandar/waybill/internal/digest"
	"github.com/zulandar/waybill/internal/notify"
	"github.com/zulandar/waybill/internal/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Waybill API server",
		Long:  "Connects to the database, runs migrations, starts the due-date digest scheduler and serves the REST API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "waybill.yaml", "path to Waybill config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if _, err := db.SeedSystemUser(gormDB); err != nil {
		return err
	}

	dispatcher, err := buildDispatcher(cfg, logger)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	if cfg.Digest.Schedule != "" {
		d := digest.New(digest.Opts{
			DB:           gormDB,
			Dispatcher:   dispatcher,
			DueSoonHours: cfg.Digest.DueSoonHours,
			Logger:       logger,
		})
		stop, err := d.Schedule(cfg.Digest.Schedule)
		if err != nil {
			return fmt.Errorf("schedule digest: %w", err)
		}
		defer stop()
		logger.Info("digest scheduled", "cron", cfg.Digest.Schedule)
	}

	srv, err := server.New(server.Opts{
		DB:         gormDB,
		Logger:     logger,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return srv.Run(ctx, cfg.Server.Port)
}

// loadConfigOrDefault falls back to built-in defaults when the config
// file does not exist, so a bare `wb serve` works out of the box.
func loadConfigOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}

// buildDispatcher wires up the chat adapters that are configured.
// Missing tokens just mean the platform is skipped.
func buildDispatcher(cfg *config.Config, logger *slog.Logger) (*notify.Dispatcher, error) {
	var adapters []notify.Adapter

	if cfg.Notify.Slack.BotToken != "" {
		slack, err := notify.NewSlack(notify.SlackOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("configure slack: %w", err)
		}
		adapters = append(adapters, slack)
		logger.Info("slack notifications enabled", "channel", cfg.Notify.Slack.ChannelID)
	}

	if cfg.Notify.Discord.BotToken != "" {
		discord, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("configure discord: %w", err)
		}
		adapters = append(adapters, discord)
		logger.Info("discord notifications enabled", "channel", cfg.Notify.Discord.ChannelID)
	}

	return notify.NewDispatcher(adapters...), nil
}
