/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	allowedOrigins []string
	bind           string
	maxMessageSize int64
	metrics        bool
	pingInterval   time.Duration
	port           int
	prefix         string
	profile        bool
	sendBuffer     int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return ErrTLSPair
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("%w (must be between 1-65535 inclusive): %d", ErrInvalidPort, c.port)
	}
	if c.maxMessageSize < 1 {
		return fmt.Errorf("%w: --max-message-size %d", ErrNotPositive, c.maxMessageSize)
	}
	if c.sendBuffer < 1 {
		return fmt.Errorf("%w: --send-buffer %d", ErrNotPositive, c.sendBuffer)
	}
	if c.pingInterval <= 0 {
		return fmt.Errorf("%w: --ping-interval %s", ErrNotPositive, c.pingInterval)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PIXELROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "pixelroom",
		Short:         "Draw a pixel avatar, walk it around a shared room, and chat.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", []string{}, "origins allowed to open websockets and make cross-origin requests; empty allows any (env: PIXELROOM_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PIXELROOM_BIND)")
	fs.Int64Var(&cfg.maxMessageSize, "max-message-size", 64*1024, "largest websocket frame accepted from a client, in bytes (env: PIXELROOM_MAX_MESSAGE_SIZE)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: PIXELROOM_METRICS)")
	fs.DurationVar(&cfg.pingInterval, "ping-interval", 54*time.Second, "time between websocket pings; silent clients are dropped after 10/9 of this (env: PIXELROOM_PING_INTERVAL)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: PIXELROOM_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PIXELROOM_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PIXELROOM_PROFILE)")
	fs.IntVar(&cfg.sendBuffer, "send-buffer", 64, "outbound frames queued per connection before it is dropped (env: PIXELROOM_SEND_BUFFER)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PIXELROOM_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PIXELROOM_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PIXELROOM_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PIXELROOM_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("pixelroom v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
