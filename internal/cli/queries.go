package cli

import (
	"bufio"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-lookup/internal/history"
	"github.com/i474232898/weather-lookup/internal/pages"
	"github.com/i474232898/weather-lookup/internal/tui"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var errNothingToUpdate = errors.New("nothing to update; pass --location, --start or --end")

func newQueriesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queries",
		Aliases: []string{"q", "history"},
		Short:   "Manage stored weather queries",
	}

	cmd.AddCommand(newQueriesListCommand())
	cmd.AddCommand(newQueriesGetCommand())
	cmd.AddCommand(newQueriesCreateCommand())
	cmd.AddCommand(newQueriesUpdateCommand())
	cmd.AddCommand(newQueriesDeleteCommand())
	cmd.AddCommand(newQueriesBrowseCommand())
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid query id %q", s)
	}
	return id, nil
}

func newQueriesListCommand() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			if limit <= 0 {
				limit = env.Config.PageSize
			}
			records, err := env.Client.ListQueries(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			if env.Config.Output == OutputJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			renderQueries(cmd.OutOrStdout(), records)
			if len(records) == limit {
				fmt.Fprintf(cmd.OutOrStdout(), "More records available: --skip %d\n", skip+limit)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Records to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Records per page (default: page_size)")
	return cmd
}

func newQueriesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one stored query with its weather data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			env := envFrom(cmd)
			rec, err := env.Client.GetQuery(cmd.Context(), id)
			if err != nil {
				return err
			}
			if env.Config.Output == OutputJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			renderQuery(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func newQueriesCreateCommand() *cobra.Command {
	var form pages.CreateForm

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Store a weather query for a location and date range",
		Example: `  weatherctl queries create --location Paris --start 2024-01-01 --end 2024-01-05`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			h := pages.NewHistory(env.Client, nil, nil)
			rec, err := h.Create(cmd.Context(), form)
			if errors.Is(err, pages.ErrInvalidForm) {
				return fieldErrors(h.Form().FieldErrors)
			}
			if err != nil {
				return err
			}
			if env.Config.Output == OutputJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created query #%d for %s (%s)\n", rec.ID, rec.Location, rec.DateRange())
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Location, "location", "", "Location to look up")
	cmd.Flags().StringVar(&form.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&form.EndDate, "end", "", "End date (YYYY-MM-DD)")
	return cmd
}

func fieldErrors(errs map[string]string) error {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+errs[k])
	}
	return errors.New(strings.Join(msgs, "; "))
}

func newQueriesUpdateCommand() *cobra.Command {
	var location, start, end string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the location or dates of a stored query",
		Long: `Update sends only the fields given on the command line. The resulting
date range is checked before anything is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch weather.QueryUpdate
			flags := cmd.Flags()
			if flags.Changed("location") {
				l := strings.TrimSpace(location)
				if l == "" {
					return errors.New(pages.MsgLocationRequired)
				}
				patch.Location = &l
			}
			if flags.Changed("start") {
				if _, err := weather.ParseDate(start); err != nil {
					return err
				}
				patch.StartDate = &start
			}
			if flags.Changed("end") {
				if _, err := weather.ParseDate(end); err != nil {
					return err
				}
				patch.EndDate = &end
			}
			if patch.IsEmpty() {
				return errNothingToUpdate
			}

			env := envFrom(cmd)
			if patch.StartDate == nil || patch.EndDate == nil {
				cur, err := env.Client.GetQuery(cmd.Context(), id)
				if err != nil {
					return err
				}
				merged := patch.Apply(cur)
				if merged.StartDate > merged.EndDate {
					return errors.New(history.MsgDateOrder)
				}
			} else if *patch.StartDate > *patch.EndDate {
				return errors.New(history.MsgDateOrder)
			}

			rec, err := env.Client.UpdateQuery(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			if env.Config.Output == OutputJSON {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated query #%d: %s (%s)\n", rec.ID, rec.Location, rec.DateRange())
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().StringVar(&start, "start", "", "New start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "New end date (YYYY-MM-DD)")
	return cmd
}

func newQueriesDeleteCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				fmt.Fprintf(cmd.OutOrStdout(), "Delete record #%d? [y/N] ", id)
				answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				answer = strings.ToLower(strings.TrimSpace(answer))
				if answer != "y" && answer != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}

			env := envFrom(cmd)
			if err := env.Client.DeleteQuery(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted query #%d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newQueriesBrowseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse, edit and delete stored queries interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			return tui.Run(cmd.Context(), env.Client, tui.Options{
				PageSize: env.Config.PageSize,
				Retry:    env.Retry(),
				LogFile:  env.Config.LogFile,
			})
		},
	}
}
