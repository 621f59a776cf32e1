// Package config loads chatsync settings from flags, CHATSYNC_* environment
// variables and an optional config file, in that order of precedence.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHATSYNC"

type Log struct {
	Level  string `mapstructure:"level"`
	Buffer int    `mapstructure:"buffer"`
}

type Relay struct {
	Addr     string `mapstructure:"addr"`
	DataPath string `mapstructure:"data_path"`
}

type Client struct {
	ServerURL string `mapstructure:"server_url"`
	Name      string `mapstructure:"name"`
	APIAddr   string `mapstructure:"api_addr"`
}

type Config struct {
	Log    Log    `mapstructure:"log"`
	Relay  Relay  `mapstructure:"relay"`
	Client Client `mapstructure:"client"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.buffer", 64*1024)
	v.SetDefault("relay.addr", "127.0.0.1:3000")
	v.SetDefault("relay.data_path", "")
	v.SetDefault("client.server_url", "ws://127.0.0.1:3000/ws")
	v.SetDefault("client.name", "")
	v.SetDefault("client.api_addr", "127.0.0.1:3001")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file when it is set and decodes the merged settings.
func Load(v *viper.Viper, file string) (Config, error) {
	var cfg Config
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return cfg, errors.Wrapf(err, "read config %s", file)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decode config")
	}
	if cfg.Log.Buffer < 0 {
		return cfg, errors.Errorf("log.buffer must not be negative, got %d", cfg.Log.Buffer)
	}
	return cfg, nil
}
