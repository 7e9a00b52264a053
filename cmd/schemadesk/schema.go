package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/draftworks/schemadesk/internal/config"
	"github.com/draftworks/schemadesk/internal/store"
)

var (
	schemaDBOverride string
	schemaJSONOutput bool
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage component schemas",
	Long:  "List, create, inspect, and delete component schemas directly against the local store, without running the server.",
}

func init() {
	schemaCmd.PersistentFlags().StringVar(&schemaDBOverride, "db", "",
		"Database path (overrides config and SCHEMADESK_DB_PATH)")
	schemaCmd.PersistentFlags().BoolVar(&schemaJSONOutput, "json", false,
		"Output in JSON format")

	schemaCmd.AddCommand(schemaListCmd)
	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaInfoCmd)
	schemaCmd.AddCommand(schemaDeleteCmd)

	rootCmd.AddCommand(schemaCmd)
}

// resolveStore opens the store from config with optional --db override.
// Subcommands talk to the database directly; the server need not be running.
func resolveStore() (*store.SQLiteStore, error) {
	dbPath := schemaDBOverride
	if dbPath == "" {
		// Subcommands never need the API key; skip its validation.
		os.Setenv("SCHEMADESK_DEV_MODE", "true")
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dbPath = cfg.Database.Path
	}
	return store.NewSQLiteStore(dbPath)
}

// printJSON marshals v to indented JSON and writes it to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTabWriter returns a configured tabwriter for aligned columns.
func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
