// Package cli provides the weatherctl command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/retry"
	"github.com/i474232898/weather-lookup/internal/search"
)

// Version is set at build time.
var Version = "0.1.0"

// envKey stores the per-invocation environment in the command context.
type envKey struct{}

// Env is what every subcommand needs.
type Env struct {
	Config *Config
	Client *apiclient.Client
}

// Retry returns the history list retry policy.
func (e *Env) Retry() retry.Policy {
	return retry.Fixed(e.Config.RetryAttempts, e.Config.RetryDelay)
}

// Geolocation builds the configured locator.
func (e *Env) Geolocation() *search.Geolocation {
	var loc search.Locator
	switch e.Config.Geolocation {
	case "ip":
		loc = &search.IPLocator{URL: e.Config.GeolocationIPURL, Client: &http.Client{Timeout: e.Config.GeolocationTimeout}}
	case "address":
		loc = search.NewAddressLocator(e.Config.GeolocationAddress, e.Config.GoogleGeocodingKey)
	}
	return search.NewGeolocation(loc, e.Config.GeolocationTimeout)
}

func envFrom(cmd *cobra.Command) *Env {
	if e, ok := cmd.Context().Value(envKey{}).(*Env); ok {
		return e
	}
	return nil
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "weatherctl",
		Short: "Look up weather and manage stored weather queries",
		Long: `weatherctl talks to the weather lookup backend.

It searches current conditions with photos, maps and videos, shows the
five-day forecast, and lists, edits, deletes and exports stored queries.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			client, err := apiclient.New(apiclient.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.Timeout})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, envKey{}, &Env{Config: cfg, Client: client}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./weatherctl.yaml)")
	rootCmd.PersistentFlags().String("api-base-url", "", "Backend base URL")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP timeout for backend calls (0 = none)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format (table|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputTable, OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newForecastCommand())
	rootCmd.AddCommand(newLocateCommand())
	rootCmd.AddCommand(newQueriesCommand())
	rootCmd.AddCommand(newExportCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		return err
	}
	return nil
}

// userMessage hides transport details behind the client's message.
func userMessage(err error) string {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
