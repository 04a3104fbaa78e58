package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-lookup/internal/export"
)

func newExportCommand() *cobra.Command {
	var dir string

	names := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		names = append(names, string(f))
	}

	cmd := &cobra.Command{
		Use:       "export <format>",
		Short:     "Download all stored queries as " + strings.Join(names, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: names,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(args[0])
			if err != nil {
				return err
			}

			env := envFrom(cmd)
			if !cmd.Flags().Changed("dir") {
				dir = env.Config.ExportDir
			}

			d, err := export.NewControl(env.Client).Run(cmd.Context(), f)
			if err != nil {
				return errors.New(export.MsgFailed)
			}
			path, err := export.Save(dir, d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s export to %s (%d bytes)\n", f.Label(), path, len(d.Data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory to save into (default: export_dir)")
	return cmd
}
