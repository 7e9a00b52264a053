package editor

import (
	"errors"
	"testing"
	"time"

	"github.com/draftworks/schemadesk/internal/types"
)

// --- Helpers ---

func testSchema() *types.Schema {
	return &types.Schema{
		ID:   "01HSCHEMA0000000000000TEST",
		Name: "Buttons",
		Fields: []types.Field{
			{ID: "f-width", Name: "Width", Type: types.FieldTypeNumber, DisplayOrder: 0, Active: true},
			{ID: "f-label", Name: "Label", Type: types.FieldTypeText, DisplayOrder: 1, Active: true},
			{ID: "f-kind", Name: "Kind", Type: types.FieldTypeSelect, DisplayOrder: 2, Active: true},
		},
		Active:    true,
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s := NewSession(
		WithClock(clock.Now),
		WithHistory(NewHistory(WithHistoryClock(clock.Now))),
	)
	s.SetActiveSchema(testSchema())
	return s, clock
}

// --- Tests ---

func TestSession_SetActiveSchemaResetsState(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.StartFieldEdit("f-width"); err != nil {
		t.Fatalf("StartFieldEdit failed: %v", err)
	}
	s.SelectFields("f-width")
	if _, err := s.AddField(types.Field{Name: "Extra", Type: types.FieldTypeText}); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}

	other := testSchema()
	other.ID = "01HSCHEMA000000000000OTHER"
	s.SetActiveSchema(other)

	st := s.State()
	if st.SchemaID() != other.ID {
		t.Errorf("Expected active schema %s, got %s", other.ID, st.SchemaID())
	}
	if len(st.Buffers) != 0 {
		t.Errorf("Expected buffers discarded on schema switch, got %d", len(st.Buffers))
	}
	if len(st.Selected) != 0 {
		t.Errorf("Expected selection cleared, got %d", len(st.Selected))
	}
	if st.Dirty {
		t.Error("Expected clean state after schema switch")
	}
	if s.History().CanUndo() {
		t.Error("Expected history reset on schema switch")
	}
}

func TestSession_StateSnapshotsAreIsolated(t *testing.T) {
	s, _ := newTestSession(t)

	schema := testSchema()
	schema.Fields[2].Config = map[string]any{"options": []any{"primary", "ghost"}}
	s.SetActiveSchema(schema)

	st := s.State()
	st.Schema.Name = "Mutated"
	st.Schema.Fields[0].Name = "Mutated"
	st.Schema.Fields[2].Config["options"].([]any)[0] = "Mutated"

	if got := s.State().Schema.Name; got != "Buttons" {
		t.Errorf("Snapshot mutation leaked into session: %q", got)
	}
	if got := s.State().Schema.Fields[0].Name; got != "Width" {
		t.Errorf("Snapshot field mutation leaked into session: %q", got)
	}
	if got := s.State().Schema.Fields[2].Config["options"].([]any)[0]; got != "primary" {
		t.Errorf("Snapshot config mutation leaked into session: %v", got)
	}
}

func TestSession_FieldEditUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.StartFieldEdit("f-width"); err != nil {
		t.Fatalf("StartFieldEdit failed: %v", err)
	}

	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	if err := s.UpdateField("f-width", edited); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}

	if got := s.State().Buffers["f-width"].Current.Name; got != "Height" {
		t.Fatalf("Expected buffer value Height, got %q", got)
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	if got := s.State().Buffers["f-width"].Current.Name; got != "Width" {
		t.Errorf("Expected Width after undo, got %q", got)
	}

	if !s.Redo() {
		t.Fatal("Expected redo to succeed")
	}
	if got := s.State().Buffers["f-width"].Current.Name; got != "Height" {
		t.Errorf("Expected Height after redo, got %q", got)
	}
}

func TestSession_UpdateFieldRequiresBuffer(t *testing.T) {
	s, _ := newTestSession(t)

	err := s.UpdateField("f-width", types.Field{ID: "f-width", Name: "X", Type: types.FieldTypeText})
	if !errors.Is(err, ErrNoEditBuffer) {
		t.Errorf("Expected ErrNoEditBuffer, got %v", err)
	}
}

func TestSession_UpdateFieldMarksDirty(t *testing.T) {
	s, _ := newTestSession(t)

	if s.State().Dirty {
		t.Fatal("Expected clean session before edits")
	}

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.HelpText = "in pixels"
	s.UpdateField("f-width", edited)

	st := s.State()
	if !st.Dirty {
		t.Error("Expected dirty session after edit")
	}
	if !st.Buffers["f-width"].Dirty {
		t.Error("Expected dirty buffer after edit")
	}
	if _, ok := st.Unsaved["f-width"]; !ok {
		t.Error("Expected field tracked as unsaved")
	}
}

func TestSession_SaveFieldEditValidation(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "" // required
	s.UpdateField("f-width", edited)

	ok, msgs := s.SaveFieldEdit("f-width")
	if ok {
		t.Fatal("Expected save of invalid field to fail")
	}
	if len(msgs) == 0 {
		t.Fatal("Expected validation messages")
	}

	// The failure is surfaced on the buffer and blocks only this field.
	st := s.State()
	if len(st.Buffers["f-width"].Errors) == 0 {
		t.Error("Expected errors recorded on the buffer")
	}
	if err := s.StartFieldEdit("f-label"); err != nil {
		t.Errorf("Expected other fields still editable, got %v", err)
	}
}

func TestSession_SaveFieldEditDuplicateName(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "label" // case-insensitive collision with "Label"
	s.UpdateField("f-width", edited)

	ok, msgs := s.SaveFieldEdit("f-width")
	if ok {
		t.Fatal("Expected duplicate name to fail validation")
	}
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d: %v", len(msgs), msgs)
	}
}

func TestSession_SaveFieldEditCommits(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	s.UpdateField("f-width", edited)

	ok, msgs := s.SaveFieldEdit("f-width")
	if !ok {
		t.Fatalf("Expected save to succeed, got %v", msgs)
	}

	st := s.State()
	if _, open := st.Buffers["f-width"]; open {
		t.Error("Expected buffer closed after commit")
	}
	i := st.Schema.FieldIndex("f-width")
	if got := st.Schema.Fields[i].Name; got != "Height" {
		t.Errorf("Expected committed name Height, got %q", got)
	}
}

func TestSession_CancelFieldEditDiscards(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	s.UpdateField("f-width", edited)

	s.CancelFieldEdit("f-width")

	st := s.State()
	if _, open := st.Buffers["f-width"]; open {
		t.Error("Expected buffer removed on cancel")
	}
	i := st.Schema.FieldIndex("f-width")
	if got := st.Schema.Fields[i].Name; got != "Width" {
		t.Errorf("Expected committed value untouched, got %q", got)
	}
}

func TestSession_CancelFieldEditClearsUnsavedMarker(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	s.UpdateField("f-width", edited)

	if _, pending := s.State().Unsaved["f-width"]; !pending {
		t.Fatal("Expected pending marker while the edit is open")
	}

	s.CancelFieldEdit("f-width")

	if _, pending := s.State().Unsaved["f-width"]; pending {
		t.Error("Expected pending marker dropped with the cancelled buffer")
	}
}

func TestSession_AddFieldUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	id, err := s.AddField(types.Field{Name: "Color", Type: types.FieldTypeText, Active: true})
	if err != nil {
		t.Fatalf("AddField failed: %v", err)
	}
	if id == "" {
		t.Fatal("Expected generated field ID")
	}
	if len(s.State().Schema.Fields) != 4 {
		t.Fatalf("Expected 4 fields, got %d", len(s.State().Schema.Fields))
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	if len(s.State().Schema.Fields) != 3 {
		t.Errorf("Expected 3 fields after undo, got %d", len(s.State().Schema.Fields))
	}

	if !s.Redo() {
		t.Fatal("Expected redo to succeed")
	}
	st := s.State()
	if len(st.Schema.Fields) != 4 {
		t.Errorf("Expected 4 fields after redo, got %d", len(st.Schema.Fields))
	}
	if st.Schema.FieldIndex(id) != 3 {
		t.Errorf("Expected re-added field at original index 3, got %d", st.Schema.FieldIndex(id))
	}
}

func TestSession_DeleteFieldUndoRestoresPosition(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.DeleteField("f-label"); err != nil {
		t.Fatalf("DeleteField failed: %v", err)
	}
	if got := len(s.State().Schema.Fields); got != 2 {
		t.Fatalf("Expected 2 fields, got %d", got)
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	st := s.State()
	if got := st.Schema.FieldIndex("f-label"); got != 1 {
		t.Errorf("Expected field restored at index 1, got %d", got)
	}
	// Display order renumbered to match positions.
	for i, f := range st.Schema.Fields {
		if f.DisplayOrder != i {
			t.Errorf("Field %s: display order %d at position %d", f.ID, f.DisplayOrder, i)
		}
	}
}

func TestSession_DeleteMissingField(t *testing.T) {
	s, _ := newTestSession(t)
	if err := s.DeleteField("f-ghost"); !errors.Is(err, ErrFieldNotFound) {
		t.Errorf("Expected ErrFieldNotFound, got %v", err)
	}
}

func TestSession_ReorderFieldsUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	if err := s.ReorderFields([]string{"f-kind", "f-width", "f-label"}); err != nil {
		t.Fatalf("ReorderFields failed: %v", err)
	}
	if got := s.State().Schema.Fields[0].ID; got != "f-kind" {
		t.Fatalf("Expected f-kind first, got %s", got)
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	if got := s.State().Schema.Fields[0].ID; got != "f-width" {
		t.Errorf("Expected original order restored, got %s first", got)
	}

	if !s.Redo() {
		t.Fatal("Expected redo to succeed")
	}
	if got := s.State().Schema.Fields[0].ID; got != "f-kind" {
		t.Errorf("Expected reorder re-applied, got %s first", got)
	}
}

func TestSession_ReorderRejectsNonPermutation(t *testing.T) {
	s, _ := newTestSession(t)

	tests := [][]string{
		{"f-width", "f-label"},                        // missing one
		{"f-width", "f-label", "f-ghost"},             // unknown ID
		{"f-width", "f-width", "f-label"},             // duplicate
		{"f-width", "f-label", "f-kind", "f-extra"},   // too many
	}
	for _, order := range tests {
		if err := s.ReorderFields(order); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("ReorderFields(%v): expected ErrInvalidOrder, got %v", order, err)
		}
	}
}

func TestSession_UpdateSchemaMetaUndo(t *testing.T) {
	s, _ := newTestSession(t)

	name := "Buttons v2"
	if err := s.UpdateSchemaMeta(&name, nil); err != nil {
		t.Fatalf("UpdateSchemaMeta failed: %v", err)
	}
	if got := s.State().Schema.Name; got != "Buttons v2" {
		t.Fatalf("Expected renamed schema, got %q", got)
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	if got := s.State().Schema.Name; got != "Buttons" {
		t.Errorf("Expected original name after undo, got %q", got)
	}
}

func TestSession_GroupedMutationsUndoAtomically(t *testing.T) {
	s, _ := newTestSession(t)

	s.BeginGroup("Bulk delete")
	s.DeleteField("f-label")
	s.DeleteField("f-kind")
	s.EndGroup()

	if got := len(s.State().Schema.Fields); got != 1 {
		t.Fatalf("Expected 1 field after bulk delete, got %d", got)
	}

	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	if got := len(s.State().Schema.Fields); got != 3 {
		t.Errorf("Expected one undo to restore both fields, got %d", got)
	}
}

func TestSession_Selection(t *testing.T) {
	s, _ := newTestSession(t)

	s.SelectFields("f-width", "f-label")
	st := s.State()
	if !st.IsSelected("f-width") || !st.IsSelected("f-label") {
		t.Error("Expected both fields selected")
	}
	if st.Dirty {
		t.Error("Selection must not mark the session dirty")
	}

	s.DeselectField("f-width")
	if s.State().IsSelected("f-width") {
		t.Error("Expected f-width deselected")
	}

	s.SelectAll()
	if got := len(s.State().Selected); got != 3 {
		t.Errorf("Expected 3 selected, got %d", got)
	}

	s.ClearSelection()
	if got := len(s.State().Selected); got != 0 {
		t.Errorf("Expected empty selection, got %d", got)
	}
}

func TestSession_DeleteFieldDropsSelection(t *testing.T) {
	s, _ := newTestSession(t)

	s.SelectFields("f-label")
	s.DeleteField("f-label")

	if s.State().IsSelected("f-label") {
		t.Error("Expected deleted field removed from selection")
	}
}

func TestSession_ObserverSeesEachTransition(t *testing.T) {
	s, _ := newTestSession(t)

	var got []string
	s.Subscribe(func(st State) {
		got = append(got, st.Schema.Name)
	})

	name := "First"
	s.UpdateSchemaMeta(&name, nil)
	name2 := "Second"
	s.UpdateSchemaMeta(&name2, nil)

	if len(got) != 2 {
		t.Fatalf("Expected 2 notifications, got %d", len(got))
	}
	if got[0] != "First" || got[1] != "Second" {
		t.Errorf("Expected transitions in dispatch order, got %v", got)
	}
}

func TestSession_ObserverMayReadHistoryDuringUndoRedo(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	s.UpdateField("f-width", edited)

	// Observers reading undo/redo availability for button state must not
	// block the mutation that notified them.
	s.Subscribe(func(State) {
		s.History().CanUndo()
		s.History().CanRedo()
	})

	done := make(chan bool, 1)
	go func() { done <- s.Undo() }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Expected undo to succeed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Undo blocked while an observer read history state")
	}

	go func() { done <- s.Redo() }()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("Expected redo to succeed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Redo blocked while an observer read history state")
	}

	if got := s.State().Buffers["f-width"].Current.Name; got != "Height" {
		t.Errorf("Expected Height after redo, got %q", got)
	}
}

func TestSession_OpsWithoutActiveSchema(t *testing.T) {
	s := NewSession()

	if err := s.StartFieldEdit("f"); !errors.Is(err, ErrNoActiveSchema) {
		t.Errorf("StartFieldEdit: expected ErrNoActiveSchema, got %v", err)
	}
	if _, err := s.AddField(types.Field{Name: "X", Type: types.FieldTypeText}); !errors.Is(err, ErrNoActiveSchema) {
		t.Errorf("AddField: expected ErrNoActiveSchema, got %v", err)
	}
	if err := s.DeleteField("f"); !errors.Is(err, ErrNoActiveSchema) {
		t.Errorf("DeleteField: expected ErrNoActiveSchema, got %v", err)
	}
	if err := s.ReorderFields(nil); !errors.Is(err, ErrNoActiveSchema) {
		t.Errorf("ReorderFields: expected ErrNoActiveSchema, got %v", err)
	}
}

func TestSession_UndoAfterCommitTargetsSchemaField(t *testing.T) {
	s, _ := newTestSession(t)

	s.StartFieldEdit("f-width")
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	s.UpdateField("f-width", edited)
	if ok, msgs := s.SaveFieldEdit("f-width"); !ok {
		t.Fatalf("SaveFieldEdit failed: %v", msgs)
	}

	// The buffer is gone; undo falls through to the committed field.
	if !s.Undo() {
		t.Fatal("Expected undo to succeed")
	}
	st := s.State()
	i := st.Schema.FieldIndex("f-width")
	if got := st.Schema.Fields[i].Name; got != "Width" {
		t.Errorf("Expected committed field reverted to Width, got %q", got)
	}
	if !st.Dirty {
		t.Error("Expected undo of a committed edit to leave the session dirty")
	}
}
