package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/smithers-cli/smithers/internal/interview"
	"github.com/smithers-cli/smithers/internal/store"
	"github.com/smithers-cli/smithers/internal/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	outputYAML = "yaml"
	outputJSON = "json"

	defaultHistoryLimit = 20
	maxRoleWidth        = 40
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List saved interview sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := getConfig(v)
			if err != nil {
				return err
			}

			db, ok, err := openHistory(config.History.Path)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No saved sessions in %s\n", config.History.Path)
				return nil
			}
			defer db.Close()

			sessions, err := db.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No saved sessions in %s\n", config.History.Path)
				return nil
			}

			return writeSummaries(cmd.OutOrStdout(), sessions)
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "number of sessions to show, 0 for all")

	historyCmd.AddCommand(newHistoryShowCmd(v))

	return historyCmd
}

func newHistoryShowCmd(v *viper.Viper) *cobra.Command {
	var output string

	showCmd := &cobra.Command{
		Use:   "show ID",
		Short: "Print a saved interview session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := getConfig(v)
			if err != nil {
				return err
			}

			db, ok, err := openHistory(config.History.Path)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", store.ErrNotFound, args[0])
			}
			defer db.Close()

			transcript, err := db.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return writeTranscript(cmd.OutOrStdout(), output, transcript)
		},
	}
	showCmd.Flags().StringVarP(&output, "output", "o", outputYAML, "output format: yaml or json")

	return showCmd
}

// openHistory reports ok=false when the database does not exist yet, so
// listing never creates an empty file.
func openHistory(path string) (*store.SQLiteStore, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("opening history: %w", err)
	}
	return db, true, nil
}

func writeSummaries(w io.Writer, sessions []store.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tROLE\tMODEL\tSTATUS\tTURNS\tRECOMMENDED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			utils.Preview(s.Role, maxRoleWidth),
			s.Model,
			s.Status,
			s.Turns,
			recommendation(s.Recommend),
		)
	}
	return tw.Flush()
}

func recommendation(r *bool) string {
	switch {
	case r == nil:
		return "-"
	case *r:
		return "yes"
	default:
		return "no"
	}
}

func writeTranscript(w io.Writer, format string, t *interview.Transcript) error {
	switch strings.ToLower(format) {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding session as yaml: %w", err)
		}
		return enc.Close()
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("encoding session as json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q, use yaml or json", format)
	}
}
