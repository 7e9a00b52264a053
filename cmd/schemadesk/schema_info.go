package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftworks/schemadesk/internal/store"
)

var schemaInfoCmd = &cobra.Command{
	Use:   "info <schema-id>",
	Short: "Show detailed information about a schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaInfo,
}

func runSchemaInfo(cmd *cobra.Command, args []string) error {
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

	out := cmd.OutOrStdout()

	if schemaJSONOutput {
		return printJSON(out, schema)
	}

	fmt.Fprintf(out, "Schema:      %s\n", schema.ID)
	fmt.Fprintf(out, "Name:        %s\n", schema.Name)
	if schema.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", schema.Description)
	}
	fmt.Fprintf(out, "Default:     %t\n", schema.IsDefault)
	fmt.Fprintf(out, "Active:      %t\n", schema.Active)
	fmt.Fprintf(out, "Created:     %s\n", schema.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Updated:     %s\n", schema.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Fields:      %d\n", len(schema.Fields))

	if len(schema.Fields) > 0 {
		fmt.Fprintln(out)
		w := newTabWriter(out)
		fmt.Fprintln(w, "ORDER\tNAME\tTYPE\tREQUIRED\tID")
		for _, f := range schema.Fields {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n",
				f.DisplayOrder, f.Name, f.Type, f.Required, f.ID)
		}
		w.Flush()
	}

	return nil
}
