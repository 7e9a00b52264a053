package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/draftworks/schemadesk/internal/store"
	"github.com/draftworks/schemadesk/internal/types"
	"github.com/draftworks/schemadesk/internal/validation"
)

var (
	createDescription string
	createDefault     bool
	createFieldsFile  string
)

var schemaCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new schema",
	Long:  "Create a new component schema. Field definitions can be supplied as a JSON file via --fields.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaCreate,
}

func init() {
	schemaCreateCmd.Flags().StringVar(&createDescription, "description", "",
		"Human-readable description")
	schemaCreateCmd.Flags().BoolVar(&createDefault, "default", false,
		"Mark this schema as the default")
	schemaCreateCmd.Flags().StringVar(&createFieldsFile, "fields", "",
		"Path to a JSON file with the field definitions")
}

func runSchemaCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	in := types.NewSchema{
		Name:        args[0],
		Description: createDescription,
		IsDefault:   createDefault,
	}

	if createFieldsFile != "" {
		data, err := os.ReadFile(createFieldsFile)
		if err != nil {
			return fmt.Errorf("read fields file: %w", err)
		}
		if err := json.Unmarshal(data, &in.Fields); err != nil {
			return fmt.Errorf("parse fields file: %w", err)
		}
	}

	if errs := validation.ValidateNewSchema(in); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(cmd.ErrOrStderr(), "invalid:", e.Error())
		}
		return fmt.Errorf("schema definition is invalid")
	}

	db, err := resolveStore()
	if err != nil {
		return err
	}
	defer db.Close()

	created, err := db.CreateSchema(ctx, in)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return fmt.Errorf("a schema named %q already exists", in.Name)
		}
		return err
	}

	if schemaJSONOutput {
		return printJSON(cmd.OutOrStdout(), created)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created schema %q (%s, %d fields)\n",
		created.Name, created.ID, len(created.Fields))
	return nil
}
