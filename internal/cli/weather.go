package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-lookup/internal/pages"
	"github.com/i474232898/weather-lookup/internal/search"
)

func timeFromUnix(s int64) time.Time {
	return time.Unix(s, 0).Local()
}

func newSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <location>",
		Short: "Show current weather, photos, map and videos for a location",
		Long: `Search looks up current conditions for a city, landmark, zip code or
"lat,lon" pair, then fetches photos, a map and videos for the matched place.
Media failures are reported per section and never fail the command.`,
		Example: `  weatherctl search Paris
  weatherctl search "48.85660,2.35220" -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			return runSearch(cmd, env, strings.Join(args, " "))
		},
	}
}

func runSearch(cmd *cobra.Command, env *Env, input string) error {
	home := pages.NewHome(env.Client)
	view, _, err := home.Search(cmd.Context(), input)
	if errors.Is(err, search.ErrEmptyQuery) {
		return fmt.Errorf("please enter a location")
	}
	if err != nil {
		return err
	}

	if env.Config.Output == OutputJSON {
		return printJSON(cmd.OutOrStdout(), view)
	}
	renderCurrent(cmd.OutOrStdout(), view)
	return nil
}

func newForecastCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forecast <location>",
		Short: "Show the 5-day forecast for a location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFrom(cmd)
			view, err := pages.NewForecast(env.Client).Show(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if view.Guidance != "" {
				fmt.Fprintln(cmd.OutOrStdout(), view.Guidance)
				return nil
			}
			if env.Config.Output == OutputJSON {
				return printJSON(cmd.OutOrStdout(), view)
			}
			renderForecast(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newLocateCommand() *cobra.Command {
	var searchToo bool

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve the current position to coordinates",
		Long: `Locate resolves the current position with the configured provider
(ip, address or none) and prints it as "lat,lon". With --search the
coordinates are searched right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			coords, err := env.Geolocation().Resolve(cmd.Context())
			if err != nil {
				return errors.New(search.Message(err))
			}
			if !searchToo {
				fmt.Fprintln(cmd.OutOrStdout(), coords)
				return nil
			}
			return runSearch(cmd, env, coords)
		},
	}

	cmd.Flags().BoolVar(&searchToo, "search", false, "Search the resolved coordinates")
	return cmd
}
