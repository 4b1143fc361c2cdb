package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// globalFlags are shared by every subcommand. Each can also be set through
// a LENDGUARD_ prefixed environment variable (dashes become underscores).
type globalFlags struct {
	configPath string
	baseURL    string
	statePath  string
	redisAddr  string
	logLevel   string
	logEnv     string
	timeout    time.Duration
	noColor    bool
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{
		statePath: defaultStatePath(),
		logLevel:  "warn",
		logEnv:    "dev",
		timeout:   30 * time.Second,
	}

	cmd := &cobra.Command{
		Use:           "lendguard",
		Short:         "Resilient client for the loan administration backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to a lendguard config file (.json, .yaml)")
	pf.StringVar(&flags.baseURL, "base-url", "", "Backend API base URL, e.g. https://api.example.com/api")
	pf.StringVar(&flags.statePath, "state", flags.statePath, "SQLite file holding remembered sessions")
	pf.StringVar(&flags.redisAddr, "redis-addr", "", "Keep remembered sessions in Redis at this address instead of SQLite")
	pf.StringVar(&flags.logLevel, "log-level", flags.logLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logEnv, "log-env", flags.logEnv, "Log format: dev (console) or prod (JSON)")
	pf.DurationVar(&flags.timeout, "timeout", flags.timeout, "Per-attempt transport timeout")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored notifications")

	commands := []*cobra.Command{
		newLoginCommand(flags),
		newLogoutCommand(flags),
		newWhoamiCommand(flags),
		newGetCommand(flags),
		newPingCommand(flags),
		newServeCommand(flags),
	}
	cmd.AddCommand(commands...)

	bindViper(append([]*cobra.Command{cmd}, commands...)...)

	return cmd
}

// bindViper lets environment variables fill every flag the user did not set
// explicitly.
func bindViper(commands ...*cobra.Command) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix("LENDGUARD")
	v.AutomaticEnv()

	cobra.OnInitialize(func() {
		for _, cmd := range commands {
			cobra.CheckErr(v.BindPFlags(cmd.Flags()))
			cobra.CheckErr(v.BindPFlags(cmd.PersistentFlags()))
		}

		for _, cmd := range commands {
			for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
				fs.VisitAll(func(f *pflag.Flag) {
					if f.Changed || !v.IsSet(f.Name) {
						return
					}

					if val := fmt.Sprintf("%v", v.Get(f.Name)); val != "" {
						_ = f.Value.Set(val)
					}
				})
			}
		}
	})
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "lendguard.db"
	}

	return filepath.Join(dir, "lendguard", "credentials.db")
}

var errNoBaseURL = errors.New("no base URL: pass --base-url, set LENDGUARD_BASE_URL or use --config")
