package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/byte4ever/lendguard"
	"github.com/byte4ever/lendguard/httpx"
)

func newLoginCommand(flags *globalFlags) *cobra.Command {
	var (
		email    string
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: "Sign in with email and password. The password is read from LENDGUARD_PASSWORD or stdin.\n" +
			"With --remember=false the session only lives as long as the command.",
		Args: cobra.NoArgs,
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().BoolVar(&remember, "remember", true, "Keep the session across runs")

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, _ []string) error {
		if email == "" {
			return errors.New("--email is required")
		}

		password, err := readPassword(cmd.InOrStdin())
		if err != nil {
			return err
		}

		if _, err := a.client.Login(ctx, email, password, remember); err != nil {
			return err
		}

		fmt.Fprintf(a.out, "Signed in as %s\n", email)

		return nil
	})

	return cmd
}

func newLogoutCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored credentials",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, _ []string) error {
		if err := a.client.Logout(ctx); err != nil {
			// Local credentials are gone even when the backend call failed.
			a.logger.Warn("logout call failed", zap.Error(err))
		}

		fmt.Fprintln(a.out, "Signed out")

		return nil
	})

	return cmd
}

func newWhoamiCommand(flags *globalFlags) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the backend instead of reading the stored token")

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, _ []string) error {
		if remote {
			profile, err := a.client.Me(ctx)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(a.out, string(profile))

			return err //nolint:wrapcheck // stdout write
		}

		claims, err := a.store.Claims()
		if err != nil {
			return err
		}

		state := "valid"
		if claims.Expired(time.Now()) {
			state = "expired"
		}

		fmt.Fprintf(a.out, "user:    %s\nemail:   %s\nrole:    %s\nexpires: %s (%s)\n",
			claims.Subject, claims.Email, claims.Role, claims.ExpiresAt.Format(time.RFC3339), state)

		return nil
	})

	return cmd
}

func newGetCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get PATH...",
		Short: "Fetch one or more resources concurrently",
		Example: `  lendguard get /unions /loans?status=ACTIVE
  lendguard get /analytics/dashboard`,
		Args: cobra.MinimumNArgs(1),
	}

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, args []string) error {
		bodies := make([][]byte, len(args))

		// A failed path does not cancel its siblings: each one runs its
		// own retry sequence to the end.
		var g errgroup.Group

		for i, arg := range args {
			g.Go(func() error {
				req, err := parseTarget(arg)
				if err != nil {
					return err
				}

				resp, err := a.client.Do(ctx, req)
				if err != nil {
					return err //nolint:wrapcheck // RequestError already names the path
				}

				bodies[i] = resp.Body

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err //nolint:wrapcheck // first failure
		}

		for _, b := range bodies {
			fmt.Fprintln(a.out, string(b))
		}

		return nil
	})

	return cmd
}

// parseTarget splits "path?query" into a GET request.
func parseTarget(target string) (*lendguard.Request, error) {
	path, rawQuery, _ := strings.Cut(target, "?")
	if path == "" {
		return nil, fmt.Errorf("empty path in %q", target)
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req := lendguard.NewRequest(http.MethodGet, path, nil)

	if rawQuery != "" {
		q, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, fmt.Errorf("parse query of %q: %w", target, err)
		}

		req.Query = q
	}

	return req, nil
}

func newPingCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping the backend health endpoint once",
		Args:  cobra.NoArgs,
	}

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, _ []string) error {
		k, err := a.keepAlive()
		if err != nil {
			return err
		}

		status, perr := k.Ping(ctx)

		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")

		if err := enc.Encode(status); err != nil {
			return fmt.Errorf("encode status: %w", err)
		}

		return perr
	})

	return cmd
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the backend awake and expose /healthz and /metrics",
		Args:  cobra.NoArgs,
	}

	cmd.Flags().StringVar(&listen, "listen", ":9464", "Address of the health and metrics server")

	cmd.RunE = withApp(flags, func(ctx context.Context, a *app, _ []string) error {
		k, err := a.keepAlive()
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/healthz", lendguard.HealthHandler(k))
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

		srv := &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			err := k.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		})

		g.Go(func() error {
			a.logger.Info("serving health and metrics", zap.String("addr", listen))

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()

			return srv.Shutdown(shutdownCtx) //nolint:wrapcheck // shutdown error
		})

		return g.Wait() //nolint:wrapcheck // first failure
	})

	return cmd
}

// keepAlive builds a pinger addressing the backend origin.
func (a *app) keepAlive() (*lendguard.KeepAlive, error) {
	opts, err := a.cfg.KeepAliveOptions()
	if err != nil {
		return nil, err
	}

	t, err := newOriginTransport(lendguard.HealthBaseURL(a.transport.BaseURL()))
	if err != nil {
		return nil, err
	}

	opts = append(opts, lendguard.PingLogger(a.logger))

	return lendguard.NewKeepAlive(t, opts...), nil
}

func newOriginTransport(origin string) (*httpx.Transport, error) {
	return httpx.NewTransport(origin, httpx.NewHTTPClient(lendguard.DefaultPingTimeout))
}
