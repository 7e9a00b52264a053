package e2e

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/draftworks/schemadesk/internal/api"
	"github.com/draftworks/schemadesk/internal/store"
	"github.com/draftworks/schemadesk/internal/types"
	"github.com/draftworks/schemadesk/pkg/editor"
)

const testAPIKey = "e2e-test-key"

// testEnv wires a real SQLite-backed store behind the HTTP API and a client
// pointed at it, all torn down with the test.
type testEnv struct {
	store  store.Store
	server *httptest.Server
	client *editor.Client
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "schemadesk.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	handler := api.NewHandler(st, testAPIKey, "e2e")
	server := httptest.NewServer(api.NewRouter(handler))

	t.Cleanup(func() {
		server.Close()
		st.Close()
	})

	return &testEnv{
		store:  st,
		server: server,
		client: editor.NewClient(server.URL, testAPIKey),
	}
}

func createButtonsSchema(t *testing.T, c *editor.Client) *types.Schema {
	t.Helper()

	created, err := c.CreateSchema(context.Background(), types.Schema{
		Name:        "Buttons",
		Description: "Button component schema",
		Fields: []types.Field{
			{Name: "Width", Type: types.FieldTypeNumber, Required: true, Active: true},
			{Name: "Label", Type: types.FieldTypeText, Active: true},
			{Name: "Kind", Type: types.FieldTypeSelect, Active: true},
		},
	})
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return created
}

func schemaRename(name string, baseVersion time.Time) types.SchemaPatch {
	return types.SchemaPatch{Name: &name, BaseVersion: baseVersion}
}

func fieldByName(t *testing.T, schema *types.Schema, name string) types.Field {
	t.Helper()
	for _, f := range schema.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("schema has no field named %q", name)
	return types.Field{}
}
