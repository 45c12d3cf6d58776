package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/pikarelay/internal/cliconfig"
)

const helpDescription = `
Relay a stream of commands to a Pika or Redis compatible store over one
persistent connection.

Highlights:
  - Commands are read one per line from stdin or a file, optionally followed as it grows.
  - A bounded queue applies backpressure instead of dropping.
  - A failed send is put back in the queue and the connection is re-established.
  - Wrong or missing passwords stop the relay at once with a non-zero exit.
`

var exampleUsage = strings.TrimSpace(`
  printf 'SET user:1 alice\nDEL user:2\n' | pikarelay --host 10.0.0.7 --port 9221
  pikarelay --input /var/log/keys.txt --follow --metrics-addr :9100
  pikarelay --config $HOME/.pikarelay/config.yaml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "pikarelay",
		Short:         "Relay commands to a Pika or Redis compatible store",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// PIKARELAY_* override the file but not explicitly set flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := root.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file, .toml or .yaml (default: $HOME/.pikarelay/config.toml)")

	flags.StringVar(&cfg.Host, "host", cfg.Host, "destination host")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "destination port")
	flags.StringVar(&cfg.Password, "password", cfg.Password, "password sent with AUTH (prefer PIKARELAY_PASSWORD)")
	flags.IntVar(&cfg.ID, "id", cfg.ID, "sender id shown in logs and metrics")

	flags.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "queued commands before the producer blocks")
	flags.DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "timeout of a single connect attempt")
	flags.DurationVar(&cfg.RetryInterval, "retry-interval", cfg.RetryInterval, "pause between connect attempts")
	flags.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "timeout waiting for each reply")
	flags.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "timeout writing each request")
	flags.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "upper bound of every queue wait")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "time allowed to drain the queue on exit")

	flags.StringVarP(&cfg.Input, "input", "i", cfg.Input, "file to read commands from, - for stdin")
	flags.BoolVarP(&cfg.Follow, "follow", "f", cfg.Follow, "keep reading the input file as it grows")

	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (disabled if empty)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pikarelay: %v\n", err)
		os.Exit(1)
	}
}
