package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftworks/schemadesk/internal/store"
)

var deleteForce bool

var schemaDeleteCmd = &cobra.Command{
	Use:   "delete <schema-id>",
	Short: "Delete a schema",
	Long:  "Soft-delete a schema. The schema is marked inactive and hidden from default listings; its data is retained. Requires --force or interactive confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaDelete,
}

func init() {
	schemaDeleteCmd.Flags().BoolVar(&deleteForce, "force", false,
		"Skip confirmation prompt")
}

func runSchemaDelete(cmd *cobra.Command, args []string) error {
	schemaID := args[0]
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	schema, err := db.GetSchema(ctx, schemaID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("schema %q not found", schemaID)
		}
		return err
	}

	if !deleteForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintf(errOut, "This will deactivate schema %q (%s).\n", schema.Name, schemaID)
		fmt.Fprint(errOut, "Type the schema ID to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(input) != schemaID {
			return fmt.Errorf("confirmation did not match, aborting")
		}
	}

	if err := db.DeleteSchema(ctx, schemaID); err != nil {
		return err
	}

	if schemaJSONOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"id":      schemaID,
			"deleted": true,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted schema %q\n", schema.Name)
	return nil
}
