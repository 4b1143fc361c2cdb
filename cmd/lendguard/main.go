// Command lendguard drives the loan administration backend through the
// lendguard request pipeline: it logs in, fetches resources, and keeps the
// backend awake.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/byte4ever/lendguard"
)

func main() {
	// A missing .env is fine; the environment and flags still apply.
	_ = godotenv.Load(envFile())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	handleError(err)

	if err != nil {
		os.Exit(1)
	}
}

func envFile() string {
	if p := os.Getenv("LENDGUARD_ENV_FILE"); p != "" {
		return p
	}

	return ".env"
}

func handleError(err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}

	message := err.Error()

	switch {
	case errors.Is(err, lendguard.ErrSessionExpired):
		message = fmt.Sprintf("%s\nHint: run 'lendguard login' to start a new session.", err)
	case errors.Is(err, lendguard.ErrNotAuthenticated):
		message = fmt.Sprintf("%s\nHint: run 'lendguard login' first.", err)
	case errors.Is(err, context.Canceled):
		message = "interrupted"
	default:
		var re *lendguard.RequestError
		if errors.As(err, &re) && re.Class == lendguard.Unclassified {
			message = fmt.Sprintf("%s\n%s", err, lendguard.Describe(err))
		}
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}
