package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind        string
	port        int
	externalURL string
	redisAddr   string
	redisQueue  string
	verbose     bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("POISONCAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "poisoncake",
		Short:         "Authoritative multiplayer server for the hidden-poison board game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flags not set on the command line fall back to POISONCAKE_* env.
			var bindErr error
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				key := strings.ReplaceAll(f.Name, "-", "_")
				if !f.Changed && v.IsSet(key) {
					if err := cmd.Flags().Set(f.Name, v.GetString(key)); err != nil && bindErr == nil {
						bindErr = err
					}
				}
			})
			return bindErr
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: POISONCAKE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 4000, "port to listen on (env: POISONCAKE_PORT)")
	fs.StringVar(&cfg.externalURL, "external-url", "http://localhost:4000", "address clients reach the service on, used in join links (env: POISONCAKE_EXTERNAL_URL)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "", "Redis address for the optional room-event feed; empty disables it (env: POISONCAKE_REDIS_ADDR)")
	fs.StringVar(&cfg.redisQueue, "redis-queue", "", "queue name for the room-event feed (env: POISONCAKE_REDIS_QUEUE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "enable debug logging (env: POISONCAKE_VERBOSE)")

	return cmd
}
