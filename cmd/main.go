package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pelusa-v/chatsync/internal/config"
	"github.com/pelusa-v/chatsync/internal/logging"
)

var (
	v          = config.New()
	flagConfig string
	cfg        config.Config
	logRing    *logging.Ring
)

var rootCmd = &cobra.Command{
	Use:           "chatsync",
	Short:         "Chat relay and headless chat session synchronizer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(v, flagConfig); err != nil {
			return err
		}
		logRing, err = logging.Setup(cfg.Log.Level, cfg.Log.Buffer, os.Stderr)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "optional config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.Int("log-buffer", 64*1024, "bytes of recent log kept in memory (0 disables)")
	cobra.CheckErr(v.BindPFlag("log.level", flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("log.buffer", flags.Lookup("log-buffer")))

	rootCmd.AddCommand(relayCmd, clientCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chatsync command")
	}
}
