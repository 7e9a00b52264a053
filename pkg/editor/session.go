package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/draftworks/schemadesk/internal/types"
	"github.com/draftworks/schemadesk/internal/validation"
)

// Change identifiers for non-field-scoped unsaved changes.
const (
	changeFieldOrder = "schema:order"
	changeSchemaMeta = "schema:meta"
)

// action is the sealed set of state transitions. The reducer is the only
// consumer; side effects (timers, network, storage) live in the Session
// methods and the engines layered on top.
type action interface{ isAction() }

type (
	setActiveSchema struct{ schema *types.Schema }
	startFieldEdit  struct{ field types.Field }
	updateField     struct {
		fieldID string
		value   types.Field
	}
	setFieldErrors struct {
		fieldID string
		errors  []string
	}
	commitFieldEdit   struct{ fieldID string }
	setCommittedField struct {
		fieldID string
		value   types.Field
	}
	cancelFieldEdit struct{ fieldID string }
	insertField     struct {
		field types.Field
		index int
	}
	removeField   struct{ fieldID string }
	reorderFields struct{ order []string }
	editSchemaMeta struct {
		name        *string
		description *string
	}
	selectFields   struct{ ids []string }
	deselectField  struct{ id string }
	selectAllAct   struct{}
	clearSelection struct{}
	markActivity   struct{}
	markSaving     struct{}
	markSaved      struct {
		at      time.Time
		version time.Time
		changes []string
	}
	markSaveError struct {
		message    string
		retryCount int
	}
	markConflict      struct{ conflict *ConflictRecord }
	adoptServerSchema struct{ schema *types.Schema }
	restoreSnapshot   struct{ snapshot *RecoverySnapshot }
)

func (setActiveSchema) isAction()   {}
func (startFieldEdit) isAction()    {}
func (updateField) isAction()       {}
func (setFieldErrors) isAction()    {}
func (commitFieldEdit) isAction()   {}
func (setCommittedField) isAction() {}
func (cancelFieldEdit) isAction()   {}
func (insertField) isAction()       {}
func (removeField) isAction()       {}
func (reorderFields) isAction()     {}
func (editSchemaMeta) isAction()    {}
func (selectFields) isAction()      {}
func (deselectField) isAction()     {}
func (selectAllAct) isAction()      {}
func (clearSelection) isAction()    {}
func (markActivity) isAction()      {}
func (markSaving) isAction()        {}
func (markSaved) isAction()         {}
func (markSaveError) isAction()     {}
func (markConflict) isAction()      {}
func (adoptServerSchema) isAction() {}
func (restoreSnapshot) isAction()   {}

// reduce is the pure state-transition function. It never performs I/O and
// never mutates its input: every returned State owns fresh copies of the
// containers it changed.
func reduce(s State, a action, now time.Time) State {
	switch act := a.(type) {
	case setActiveSchema:
		// Switching schemas discards in-progress, unsaved edits: no
		// cross-schema carry-over.
		return State{
			Schema:         cloneSchemaPtr(act.schema),
			Buffers:        map[string]EditBuffer{},
			Selected:       map[string]struct{}{},
			Unsaved:        map[string]struct{}{},
			Status:         StatusIdle,
			LastActivityAt: now,
		}

	case startFieldEdit:
		out := s.clone()
		// Re-starting an edit replaces the buffer wholesale; buffers are
		// never merged.
		out.Buffers[act.field.ID] = EditBuffer{
			FieldID:  act.field.ID,
			Original: act.field.Clone(),
			Current:  act.field.Clone(),
		}
		out.LastActivityAt = now
		return out

	case updateField:
		buf, ok := s.Buffers[act.fieldID]
		if !ok {
			return s
		}
		out := s.clone()
		buf.Current = act.value.Clone()
		buf.Dirty = !fieldsEqual(buf.Original, buf.Current)
		buf.Errors = nil
		out.Buffers[act.fieldID] = buf
		out.Unsaved[act.fieldID] = struct{}{}
		// Global dirty is monotonic: set here, cleared only by an explicit
		// saved/clean transition.
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case setFieldErrors:
		buf, ok := s.Buffers[act.fieldID]
		if !ok {
			return s
		}
		out := s.clone()
		buf.Errors = append([]string(nil), act.errors...)
		out.Buffers[act.fieldID] = buf
		return out

	case commitFieldEdit:
		buf, ok := s.Buffers[act.fieldID]
		if !ok {
			return s
		}
		out := s.clone()
		if i := out.Schema.FieldIndex(act.fieldID); i >= 0 {
			committed := buf.Current.Clone()
			committed.DisplayOrder = i
			out.Schema.Fields[i] = committed
		}
		delete(out.Buffers, act.fieldID)
		// The field's pending entry is settled; global dirty is monotonic
		// and stays set until the saver marks the session clean.
		delete(out.Unsaved, act.fieldID)
		out.LastSavedAt = now
		out.LastActivityAt = now
		return out

	case setCommittedField:
		if s.Schema == nil {
			return s
		}
		i := s.Schema.FieldIndex(act.fieldID)
		if i < 0 {
			return s
		}
		out := s.clone()
		value := act.value.Clone()
		value.DisplayOrder = i
		out.Schema.Fields[i] = value
		out.Unsaved[act.fieldID] = struct{}{}
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case cancelFieldEdit:
		buf, ok := s.Buffers[act.fieldID]
		if !ok {
			return s
		}
		out := s.clone()
		delete(out.Buffers, act.fieldID)
		// The buffer's pending marker goes with it, unless the committed
		// field moved while the buffer was open; that committed change
		// still needs a save.
		committedChanged := false
		if out.Schema != nil {
			if i := out.Schema.FieldIndex(act.fieldID); i >= 0 {
				committedChanged = !fieldsEqual(out.Schema.Fields[i], buf.Original)
			}
		}
		if !committedChanged {
			delete(out.Unsaved, act.fieldID)
		}
		out.LastActivityAt = now
		return out

	case insertField:
		if s.Schema == nil {
			return s
		}
		out := s.clone()
		i := act.index
		if i < 0 || i > len(out.Schema.Fields) {
			i = len(out.Schema.Fields)
		}
		fields := out.Schema.Fields
		fields = append(fields[:i], append([]types.Field{act.field.Clone()}, fields[i:]...)...)
		out.Schema.Fields = renumber(fields)
		out.Unsaved[act.field.ID] = struct{}{}
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case removeField:
		if s.Schema == nil {
			return s
		}
		i := s.Schema.FieldIndex(act.fieldID)
		if i < 0 {
			return s
		}
		out := s.clone()
		out.Schema.Fields = renumber(append(out.Schema.Fields[:i], out.Schema.Fields[i+1:]...))
		delete(out.Buffers, act.fieldID)
		delete(out.Selected, act.fieldID)
		out.Unsaved[act.fieldID] = struct{}{}
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case reorderFields:
		if s.Schema == nil {
			return s
		}
		out := s.clone()
		byID := make(map[string]types.Field, len(out.Schema.Fields))
		for _, f := range out.Schema.Fields {
			byID[f.ID] = f
		}
		reordered := make([]types.Field, 0, len(act.order))
		for _, id := range act.order {
			if f, ok := byID[id]; ok {
				reordered = append(reordered, f)
			}
		}
		out.Schema.Fields = renumber(reordered)
		out.Unsaved[changeFieldOrder] = struct{}{}
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case editSchemaMeta:
		if s.Schema == nil {
			return s
		}
		out := s.clone()
		if act.name != nil {
			out.Schema.Name = *act.name
		}
		if act.description != nil {
			out.Schema.Description = *act.description
		}
		out.Unsaved[changeSchemaMeta] = struct{}{}
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case selectFields:
		out := s.clone()
		for _, id := range act.ids {
			out.Selected[id] = struct{}{}
		}
		out.LastActivityAt = now
		return out

	case deselectField:
		out := s.clone()
		delete(out.Selected, act.id)
		out.LastActivityAt = now
		return out

	case selectAllAct:
		if s.Schema == nil {
			return s
		}
		out := s.clone()
		for _, f := range out.Schema.Fields {
			out.Selected[f.ID] = struct{}{}
		}
		out.LastActivityAt = now
		return out

	case clearSelection:
		out := s.clone()
		out.Selected = map[string]struct{}{}
		out.LastActivityAt = now
		return out

	case markActivity:
		out := s.clone()
		out.Dirty = true
		out.LastActivityAt = now
		return out

	case markSaving:
		out := s.clone()
		out.Status = StatusSaving
		out.SaveError = ""
		return out

	case markSaved:
		out := s.clone()
		out.Status = StatusSaved
		out.SaveError = ""
		out.RetryCount = 0
		out.Conflict = nil
		out.LastSavedAt = act.at
		if out.Schema != nil && !act.version.IsZero() {
			out.Schema.UpdatedAt = act.version
		}
		// Only the changes captured in the saved snapshot are cleared;
		// mutations that landed mid-flight stay unsaved for the next cycle.
		for _, id := range act.changes {
			delete(out.Unsaved, id)
		}
		out.Dirty = len(out.Unsaved) > 0
		return out

	case markSaveError:
		out := s.clone()
		out.Status = StatusError
		out.SaveError = act.message
		out.RetryCount = act.retryCount
		return out

	case markConflict:
		out := s.clone()
		out.Status = StatusConflict
		out.Conflict = act.conflict
		return out

	case adoptServerSchema:
		// keep_server resolution: local edits are discarded outright.
		return State{
			Schema:      cloneSchemaPtr(act.schema),
			Buffers:     map[string]EditBuffer{},
			Selected:    map[string]struct{}{},
			Unsaved:     map[string]struct{}{},
			Status:      StatusSaved,
			LastSavedAt: now,
		}

	case restoreSnapshot:
		out := s.clone()
		schema := act.snapshot.Schema.Clone()
		out.Schema = &schema
		out.Buffers = make(map[string]EditBuffer, len(act.snapshot.EditBuffers))
		for id, buf := range act.snapshot.EditBuffers {
			out.Buffers[id] = buf
		}
		out.Unsaved = map[string]struct{}{}
		for _, id := range act.snapshot.ChangeIDs {
			out.Unsaved[id] = struct{}{}
		}
		// A snapshot only exists because a save never completed, so the
		// restored state is unsaved by definition.
		out.Dirty = true
		out.Status = StatusIdle
		out.LastActivityAt = now
		return out
	}

	return s
}

// clone returns a State whose containers are safe to mutate independently.
func (s State) clone() State {
	out := s
	out.Schema = cloneSchemaPtr(s.Schema)
	out.Buffers = make(map[string]EditBuffer, len(s.Buffers))
	for k, v := range s.Buffers {
		out.Buffers[k] = v
	}
	out.Selected = make(map[string]struct{}, len(s.Selected))
	for k := range s.Selected {
		out.Selected[k] = struct{}{}
	}
	out.Unsaved = make(map[string]struct{}, len(s.Unsaved))
	for k := range s.Unsaved {
		out.Unsaved[k] = struct{}{}
	}
	return out
}

func cloneSchemaPtr(s *types.Schema) *types.Schema {
	if s == nil {
		return nil
	}
	c := s.Clone()
	return &c
}

func renumber(fields []types.Field) []types.Field {
	for i := range fields {
		fields[i].DisplayOrder = i
	}
	return fields
}

// fieldsEqual compares two fields by their serialized form, the same way
// buffer dirtiness is surfaced to the UI.
func fieldsEqual(a, b types.Field) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// Session owns the editing state for one active schema. All mutations are
// serialized through the reducer in dispatch order; observers see each
// resulting state as an isolated snapshot.
//
// A Session is explicitly constructed and passed to whatever owns the UI
// tree; there is no ambient singleton.
type Session struct {
	mu        sync.Mutex
	id        string
	state     State
	history   *History
	observers []func(State)
	now       func() time.Time
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock overrides the session's time source, for tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithHistory replaces the default undo/redo engine configuration.
func WithHistory(h *History) SessionOption {
	return func(s *Session) { s.history = h }
}

// NewSession creates an empty session with its undo/redo engine wired to a
// closed executor table over the session's own operations.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:  uuid.NewString(),
		now: time.Now,
		state: State{
			Buffers:  map[string]EditBuffer{},
			Selected: map[string]struct{}{},
			Unsaved:  map[string]struct{}{},
			Status:   StatusIdle,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.history == nil {
		s.history = NewHistory()
	}
	if s.history.now == nil {
		s.history.now = s.now
	}
	s.history.onChange = func() { s.dispatch(markActivity{}) }
	s.registerExecutors()
	return s
}

// ID returns the session instance identifier embedded in recovery snapshots.
func (s *Session) ID() string {
	return s.id
}

// History exposes the session's undo/redo engine.
func (s *Session) History() *History {
	return s.history
}

// State returns a snapshot of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers an observer notified after every state transition.
// Observers receive snapshots and may dispatch back into the session.
func (s *Session) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// dispatch applies an action through the reducer and notifies observers.
// Observers are called without the session lock held.
func (s *Session) dispatch(a action) State {
	s.mu.Lock()
	s.state = reduce(s.state, a, s.now())
	snapshot := s.state.clone()
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
	return snapshot
}

// SetActiveSchema replaces the active schema, discarding all edit buffers,
// selection, unsaved tracking, and undo/redo history. Destructive and
// intentional: there is no undo path back across a schema switch.
func (s *Session) SetActiveSchema(schema *types.Schema) {
	s.history.Reset()
	s.dispatch(setActiveSchema{schema: schema})
}

// StartFieldEdit opens an edit buffer for the field with original = current.
// Calling it again for the same field replaces the buffer, losing any
// uncommitted edit.
func (s *Session) StartFieldEdit(fieldID string) error {
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	field, ok := st.Schema.FieldByID(fieldID)
	if !ok {
		return ErrFieldNotFound
	}
	s.dispatch(startFieldEdit{field: field})
	return nil
}

// UpdateField replaces the edit buffer's current value and records a
// reversible operation. Requires a started edit.
func (s *Session) UpdateField(fieldID string, value types.Field) error {
	s.mu.Lock()
	buf, ok := s.state.Buffers[fieldID]
	if !ok {
		s.mu.Unlock()
		return ErrNoEditBuffer
	}
	prev := buf.Current
	s.state = reduce(s.state, updateField{fieldID: fieldID, value: value}, s.now())
	snapshot := s.state.clone()
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}

	s.history.AddOperation(OpFieldEdited,
		FieldEditPayload{FieldID: fieldID, Value: value.Clone()},
		FieldEditPayload{FieldID: fieldID, Value: prev.Clone()},
		fmt.Sprintf("Edit field %q", prev.Name))
	return nil
}

// SaveFieldEdit validates and commits the buffer into the active schema.
// Validation failure blocks only this field's save; the error strings are
// returned and also surfaced on the buffer.
func (s *Session) SaveFieldEdit(fieldID string) (bool, []string) {
	st := s.State()
	buf, ok := st.Buffers[fieldID]
	if !ok {
		return false, []string{"no edit in progress"}
	}

	var c validation.Collector
	for _, e := range validation.ValidateField("field", buf.Current) {
		c.Add(&e)
	}
	if st.Schema != nil {
		lower := normalizedName(buf.Current.Name)
		for _, f := range st.Schema.Fields {
			if f.ID != fieldID && normalizedName(f.Name) == lower {
				c.Add(&validation.ValidationError{
					Field:   "field.name",
					Message: fmt.Sprintf("duplicates field %q (names are case-insensitively unique)", f.Name),
				})
				break
			}
		}
	}
	if c.HasErrors() {
		msgs := c.Messages()
		s.dispatch(setFieldErrors{fieldID: fieldID, errors: msgs})
		return false, msgs
	}

	s.dispatch(commitFieldEdit{fieldID: fieldID})
	return true, nil
}

// CancelFieldEdit discards the in-progress edit. The field reverts to its
// last committed value; no undo entry is produced.
func (s *Session) CancelFieldEdit(fieldID string) {
	s.dispatch(cancelFieldEdit{fieldID: fieldID})
}

// AddField appends a field to the active schema and records a reversible
// operation. A missing ID is generated.
func (s *Session) AddField(field types.Field) (string, error) {
	st := s.State()
	if st.Schema == nil {
		return "", ErrNoActiveSchema
	}
	if field.ID == "" {
		field.ID = ulid.Make().String()
	}
	index := len(st.Schema.Fields)
	s.dispatch(insertField{field: field, index: index})

	payload := FieldAddPayload{Field: field.Clone(), Index: index}
	s.history.AddOperation(OpFieldAdded, payload, payload,
		fmt.Sprintf("Add field %q", field.Name))
	return field.ID, nil
}

// DeleteField removes a field from the active schema and records a
// reversible operation.
func (s *Session) DeleteField(fieldID string) error {
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	index := st.Schema.FieldIndex(fieldID)
	if index < 0 {
		return ErrFieldNotFound
	}
	field := st.Schema.Fields[index]
	s.dispatch(removeField{fieldID: fieldID})

	payload := FieldAddPayload{Field: field.Clone(), Index: index}
	s.history.AddOperation(OpFieldDeleted, payload, payload,
		fmt.Sprintf("Delete field %q", field.Name))
	return nil
}

// ReorderFields rearranges the schema's fields. The order must be a
// permutation of the current field IDs.
func (s *Session) ReorderFields(order []string) error {
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	if !isPermutation(st.Schema.Fields, order) {
		return ErrInvalidOrder
	}
	before := make([]string, len(st.Schema.Fields))
	for i, f := range st.Schema.Fields {
		before[i] = f.ID
	}
	s.dispatch(reorderFields{order: order})

	s.history.AddOperation(OpFieldsReordered,
		ReorderPayload{Order: append([]string(nil), order...)},
		ReorderPayload{Order: before},
		"Reorder fields")
	return nil
}

// UpdateSchemaMeta edits the schema's name and/or description and records a
// reversible operation. Nil arguments leave the property unchanged.
func (s *Session) UpdateSchemaMeta(name, description *string) error {
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	prevName := st.Schema.Name
	prevDesc := st.Schema.Description
	s.dispatch(editSchemaMeta{name: name, description: description})

	undo := SchemaMetaPayload{}
	data := SchemaMetaPayload{Name: name, Description: description}
	if name != nil {
		undo.Name = &prevName
	}
	if description != nil {
		undo.Description = &prevDesc
	}
	s.history.AddOperation(OpSchemaEdited, data, undo, "Edit schema properties")
	return nil
}

// SelectFields adds the given field IDs to the selection set. Selection
// never affects dirty state.
func (s *Session) SelectFields(ids ...string) {
	s.dispatch(selectFields{ids: ids})
}

// DeselectField removes one field ID from the selection set.
func (s *Session) DeselectField(id string) {
	s.dispatch(deselectField{id: id})
}

// SelectAll selects every field in the active schema.
func (s *Session) SelectAll() {
	s.dispatch(selectAllAct{})
}

// ClearSelection empties the selection set.
func (s *Session) ClearSelection() {
	s.dispatch(clearSelection{})
}

// BeginGroup opens an operation group: subsequent mutations accumulate into
// one undoable unit until EndGroup or the inactivity window flushes it.
func (s *Session) BeginGroup(description string) {
	s.history.StartGroup(description)
}

// EndGroup flushes the open operation group.
func (s *Session) EndGroup() {
	s.history.EndGroup()
}

// Undo reverses the most recent operation. Returns false when there is
// nothing to undo or the operation's executor failed; a failed attempt
// leaves both stacks unchanged.
func (s *Session) Undo() bool {
	return s.history.Undo()
}

// Redo re-applies the most recently undone operation.
func (s *Session) Redo() bool {
	return s.history.Redo()
}

// registerExecutors installs the closed per-operation-type executor table.
// Executors apply and invert operations by dispatching reducer actions
// directly; they never record new history entries.
func (s *Session) registerExecutors() {
	s.history.RegisterExecutor(OpFieldEdited, Executor{
		Apply:  s.execSetFieldValue,
		Invert: s.execSetFieldValue,
	})
	s.history.RegisterExecutor(OpFieldAdded, Executor{
		Apply:  s.execInsertField,
		Invert: s.execRemoveField,
	})
	s.history.RegisterExecutor(OpFieldDeleted, Executor{
		Apply:  s.execRemoveField,
		Invert: s.execInsertField,
	})
	s.history.RegisterExecutor(OpFieldsReordered, Executor{
		Apply:  s.execReorder,
		Invert: s.execReorder,
	})
	s.history.RegisterExecutor(OpSchemaEdited, Executor{
		Apply:  s.execSchemaMeta,
		Invert: s.execSchemaMeta,
	})
}

// execSetFieldValue applies a field value: into the edit buffer when one is
// open, otherwise into the committed schema field. Fails when the field no
// longer exists anywhere.
func (s *Session) execSetFieldValue(payload any) error {
	p, ok := payload.(FieldEditPayload)
	if !ok {
		return fmt.Errorf("%w: field edit payload", errBadPayload)
	}
	st := s.State()
	if _, ok := st.Buffers[p.FieldID]; ok {
		s.dispatch(updateField{fieldID: p.FieldID, value: p.Value})
		return nil
	}
	if st.Schema != nil && st.Schema.FieldIndex(p.FieldID) >= 0 {
		s.dispatch(setCommittedField{fieldID: p.FieldID, value: p.Value})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFieldNotFound, p.FieldID)
}

func (s *Session) execInsertField(payload any) error {
	p, ok := payload.(FieldAddPayload)
	if !ok {
		return fmt.Errorf("%w: field add payload", errBadPayload)
	}
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	if st.Schema.FieldIndex(p.Field.ID) >= 0 {
		return fmt.Errorf("field %s already present", p.Field.ID)
	}
	s.dispatch(insertField{field: p.Field, index: p.Index})
	return nil
}

func (s *Session) execRemoveField(payload any) error {
	p, ok := payload.(FieldAddPayload)
	if !ok {
		return fmt.Errorf("%w: field add payload", errBadPayload)
	}
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	if st.Schema.FieldIndex(p.Field.ID) < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, p.Field.ID)
	}
	s.dispatch(removeField{fieldID: p.Field.ID})
	return nil
}

func (s *Session) execReorder(payload any) error {
	p, ok := payload.(ReorderPayload)
	if !ok {
		return fmt.Errorf("%w: reorder payload", errBadPayload)
	}
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	if !isPermutation(st.Schema.Fields, p.Order) {
		return ErrInvalidOrder
	}
	s.dispatch(reorderFields{order: p.Order})
	return nil
}

func (s *Session) execSchemaMeta(payload any) error {
	p, ok := payload.(SchemaMetaPayload)
	if !ok {
		return fmt.Errorf("%w: schema meta payload", errBadPayload)
	}
	st := s.State()
	if st.Schema == nil {
		return ErrNoActiveSchema
	}
	s.dispatch(editSchemaMeta{name: p.Name, description: p.Description})
	return nil
}

func normalizedName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isPermutation(fields []types.Field, order []string) bool {
	if len(order) != len(fields) {
		return false
	}
	current := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		current[f.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, ok := current[id]; !ok {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}
