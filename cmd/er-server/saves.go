package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/infra/storage"
)

func newSavesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Inspect saved sessions",
	}
	cmd.AddCommand(newSavesListCmd(opts), newSavesShowCmd(opts))
	return cmd
}

func newSavesListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			db, store, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list saves: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeSaveTable(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSavesShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved session and the recap of its journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			db, store, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			record, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrSessionNotFound) {
				return fmt.Errorf("no save matches %q", args[0])
			}
			if err != nil {
				return fmt.Errorf("load save: %w", err)
			}

			recap, err := storage.NewReconstructor(storage.NewSQLiteEventRepository(db)).
				BuildRecap(cmd.Context(), record.SessionID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"save":  record,
				"recap": recap,
			})
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSaveTable(w io.Writer, records []storage.SessionRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSAVED\tSCORE\tCURED\tTIME\tOUTCOME\tLOCATION")
	for _, r := range records {
		outcome := "ended"
		if r.GameOver {
			outcome = "game over (" + r.Reason + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%ds\t%s\t%s\n",
			r.SessionID, r.SavedAt.Format("2006-01-02 15:04:05"), r.Score, r.CuredPatients, r.GameTime, outcome, r.Location)
	}
	return tw.Flush()
}
