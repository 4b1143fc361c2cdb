package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/byte4ever/lendguard"
	"github.com/byte4ever/lendguard/gocache"
	"github.com/byte4ever/lendguard/httpx"
	"github.com/byte4ever/lendguard/internal/logging"
	"github.com/byte4ever/lendguard/memstore"
	"github.com/byte4ever/lendguard/promhooks"
	"github.com/byte4ever/lendguard/redisstore"
	"github.com/byte4ever/lendguard/sqlitestore"
)

// app is everything a subcommand needs, built from the global flags.
type app struct {
	cfg       *lendguard.Config
	logger    *zap.Logger
	store     *lendguard.CredentialStore
	client    *lendguard.Client
	registry  *prometheus.Registry
	metrics   *promhooks.Metrics
	transport *httpx.Transport
	out       io.Writer
	closers   []io.Closer
}

func newApp(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Env:     flags.logEnv,
		Level:   flags.logLevel,
		Service: "lendguard",
	})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, out: cmd.OutOrStdout()}

	persistent, err := a.openPersistent(ctx, flags)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.store = lendguard.NewCredentialStore(persistent, memstore.New())

	timeout, err := cfg.TransportTimeout()
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	if cmd.Flags().Changed("timeout") || cfg.Timeout == nil {
		timeout = flags.timeout
	}

	a.transport, err = httpx.NewTransport(cfg.BaseURL, httpx.NewHTTPClient(timeout))
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.registry = prometheus.NewRegistry()

	a.metrics, err = promhooks.New("lendguard", a.registry)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	opts, err := a.clientOptions(cmd, flags)
	if err != nil {
		return nil, errors.Join(err, a.Close())
	}

	a.client = lendguard.NewClient(a.transport, a.store, opts...)

	return a, nil
}

func loadConfig(cmd *cobra.Command, flags *globalFlags) (*lendguard.Config, error) {
	cfg := &lendguard.Config{}

	if flags.configPath != "" {
		loaded, err := lendguard.LoadConfig(flags.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	if flags.baseURL != "" && (cmd.Flags().Changed("base-url") || cfg.BaseURL == "") {
		cfg.BaseURL = flags.baseURL
	}

	if cfg.BaseURL == "" {
		return nil, errNoBaseURL
	}

	return cfg, nil
}

func (a *app) openPersistent(ctx context.Context, flags *globalFlags) (lendguard.Backend, error) {
	if flags.redisAddr != "" {
		s, err := redisstore.Dial(ctx, flags.redisAddr, 0, "", redisstore.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}

		a.closers = append(a.closers, s)

		return s, nil
	}

	s, err := sqlitestore.Open(flags.statePath, sqlitestore.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	a.closers = append(a.closers, s)

	return s, nil
}

func (a *app) clientOptions(cmd *cobra.Command, flags *globalFlags) ([]lendguard.Option, error) {
	opts, err := a.cfg.BuildOptions()
	if err != nil {
		return nil, err
	}

	errOut := cmd.ErrOrStderr()

	opts = append(opts,
		lendguard.WithLogger(a.logger),
		lendguard.WithHooks(a.metrics.Hooks()),
		lendguard.WithNotifier(newColorNotifier(errOut, flags.noColor)),
		lendguard.WithNavigator(lendguard.NewLocation("/",
			lendguard.OnNavigate(func(path string) {
				fmt.Fprintf(errOut, "Session ended, sign in again with 'lendguard login' (redirected to %s)\n", path)
			}),
		)),
	)

	cc, enabled, err := a.cfg.CacheConfig()
	if err != nil {
		return nil, err
	}

	if enabled {
		opts = append(opts, lendguard.WithCache(gocache.New(cc), cc.TTL))
	}

	return opts, nil
}

// Close releases the credential backends and flushes the logger.
func (a *app) Close() error {
	var errs []error

	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}

	a.closers = nil

	// Syncing stderr fails on some platforms; it is not worth reporting.
	_ = a.logger.Sync()

	return errors.Join(errs...)
}

func withApp(flags *globalFlags, run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx, cmd, flags)
		if err != nil {
			return err
		}

		return errors.Join(run(ctx, a, args), a.Close())
	}
}

func readPassword(in io.Reader) (string, error) {
	if p := os.Getenv("LENDGUARD_PASSWORD"); p != "" {
		return p, nil
	}

	var p string
	if _, err := fmt.Fscanln(in, &p); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	return p, nil
}
