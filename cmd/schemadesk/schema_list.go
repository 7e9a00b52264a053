package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var listIncludeInactive bool

var schemaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all schemas",
	Args:  cobra.NoArgs,
	RunE:  runSchemaList,
}

func init() {
	schemaListCmd.Flags().BoolVar(&listIncludeInactive, "include-inactive", false,
		"Include soft-deleted schemas")
}

func runSchemaList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	schemas, err := db.ListSchemas(ctx, listIncludeInactive)
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	sort.Slice(schemas, func(i, j int) bool {
		return schemas[i].Name < schemas[j].Name
	})

	if schemaJSONOutput {
		items := make([]map[string]any, len(schemas))
		for i, s := range schemas {
			items[i] = map[string]any{
				"id":          s.ID,
				"name":        s.Name,
				"fields":      len(s.Fields),
				"is_default":  s.IsDefault,
				"active":      s.Active,
				"updated_at":  s.UpdatedAt,
				"description": s.Description,
			}
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"schemas": items,
			"total":   len(items),
		})
	}

	if len(schemas) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No schemas found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tFIELDS\tDEFAULT\tACTIVE\tUPDATED")
	for _, s := range schemas {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%t\t%s\n",
			s.ID,
			s.Name,
			len(s.Fields),
			s.IsDefault,
			s.Active,
			s.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	return nil
}
