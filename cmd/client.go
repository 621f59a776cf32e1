package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pelusa-v/chatsync/internal/api"
	"github.com/pelusa-v/chatsync/internal/chat"
	"github.com/pelusa-v/chatsync/internal/transport"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect a chat session to the relay and serve it over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runClient,
}

func init() {
	flags := clientCmd.Flags()
	flags.String("server-url", "ws://127.0.0.1:3000/ws", "relay websocket URL")
	flags.String("name", "", "user name shown to peers")
	flags.String("api-addr", "127.0.0.1:3001", "listen address of the session API")
	cobra.CheckErr(v.BindPFlag("client.server_url", flags.Lookup("server-url")))
	cobra.CheckErr(v.BindPFlag("client.name", flags.Lookup("name")))
	cobra.CheckErr(v.BindPFlag("client.api_addr", flags.Lookup("api-addr")))
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn := transport.New(cfg.Client.ServerURL, log.Logger)
	session, err := chat.NewSession(conn, cfg.Client.Name, log.Logger)
	if errors.Is(err, chat.ErrMissingUsername) {
		return errors.Wrap(err, "pick a user name with --name or CHATSYNC_CLIENT_NAME")
	} else if err != nil {
		return err
	}
	defer session.Close()

	if err := conn.Connect(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Client.APIAddr,
		Handler:           api.NewHandler(session, logRing, log.Logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Client.APIAddr).Msg("[client] session api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("[client] session api stopped")
			stop()
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		conn.Close()
		<-conn.Done()
	case <-conn.Done():
		runErr = errors.Wrap(conn.Err(), "relay connection lost")
	}

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("[client] session api shutdown")
	}
	return runErr
}
