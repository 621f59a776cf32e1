package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pelusa-v/chatsync/internal/handlers"
	"github.com/pelusa-v/chatsync/internal/relay"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the chat relay",
	Args:  cobra.NoArgs,
	RunE:  runRelay,
}

func init() {
	flags := relayCmd.Flags()
	flags.String("addr", "127.0.0.1:3000", "listen address")
	flags.String("data-path", "", "optional directory for the pebble message journal")
	cobra.CheckErr(v.BindPFlag("relay.addr", flags.Lookup("addr")))
	cobra.CheckErr(v.BindPFlag("relay.data_path", flags.Lookup("data-path")))
}

func runRelay(cmd *cobra.Command, args []string) error {
	journal, err := relay.OpenJournal(cfg.Relay.DataPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := journal.Close(); err != nil {
			log.Error().Err(err).Msg("[relay] close journal")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := relay.NewHub(journal, log.Logger)
	go hub.Start(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true, Views: handlers.Views()})
	handlers.New(hub).Mount(app)

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(sctx); err != nil {
			log.Error().Err(err).Msg("[relay] shutdown")
		}
	}()

	log.Info().Str("addr", cfg.Relay.Addr).Str("journal", cfg.Relay.DataPath).Msg("[relay] listening")
	return app.Listen(cfg.Relay.Addr)
}
