package editor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/draftworks/schemadesk/internal/types"
)

// --- Mock Implementations ---

type mockPersister struct {
	mu      sync.Mutex
	calls   []types.SchemaPatch
	callIDs []string
	err     error
	result  *types.Schema
}

func (m *mockPersister) UpdateSchema(ctx context.Context, id string, patch types.SchemaPatch) (*types.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, patch)
	m.callIDs = append(m.callIDs, id)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &types.Schema{ID: id, UpdatedAt: patch.BaseVersion.Add(time.Second)}, nil
}

func (m *mockPersister) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockPersister) lastCall() types.SchemaPatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

// --- Helpers ---

func newTestAutoSaver(t *testing.T, p Persister, enabled bool) (*AutoSaver, *Session, *fakeClock) {
	t.Helper()
	s, clock := newTestSession(t)
	a := NewAutoSaver(s, p, NewMemoryStorage(), AutoSaverConfig{
		Enabled:     enabled,
		Interval:    time.Second,
		QuietWindow: 2 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		RecoveryTTL: time.Hour,
	}, WithSaverClock(clock.Now))
	t.Cleanup(a.Close)
	return a, s, clock
}

func dirtyEdit(t *testing.T, s *Session) {
	t.Helper()
	if err := s.StartFieldEdit("f-width"); err != nil {
		t.Fatalf("StartFieldEdit failed: %v", err)
	}
	edited := s.State().Buffers["f-width"].Current
	edited.Name = "Height"
	if err := s.UpdateField("f-width", edited); err != nil {
		t.Fatalf("UpdateField failed: %v", err)
	}
	if ok, msgs := s.SaveFieldEdit("f-width"); !ok {
		t.Fatalf("SaveFieldEdit failed: %v", msgs)
	}
}

// --- Tests ---

func TestAutoSaver_TickSavesWhenQuiet(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)

	a.tick(context.Background())

	if p.callCount() != 1 {
		t.Fatalf("Expected 1 persistence call, got %d", p.callCount())
	}
	st := s.State()
	if st.Status != StatusSaved {
		t.Errorf("Expected status saved, got %s", st.Status)
	}
	if st.Dirty {
		t.Error("Expected clean state after save")
	}
}

func TestAutoSaver_DebounceWithinQuietWindow(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(time.Second) // inside the 2s quiet window

	a.tick(context.Background())

	if p.callCount() != 0 {
		t.Errorf("Expected save deferred during activity, got %d calls", p.callCount())
	}
	if s.State().Status == StatusSaving {
		t.Error("Expected no save in flight")
	}
}

func TestAutoSaver_ExactlyOneSavePerSettledWindow(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)

	a.tick(context.Background())
	a.tick(context.Background())
	a.tick(context.Background())

	// The first tick saved and cleared dirty; later ticks have nothing to do.
	if p.callCount() != 1 {
		t.Errorf("Expected exactly 1 persistence call, got %d", p.callCount())
	}
}

func TestAutoSaver_SkipsWhenCleanOrNoSchema(t *testing.T) {
	p := &mockPersister{}
	a, _, clock := newTestAutoSaver(t, p, true)

	clock.Advance(time.Minute)
	a.tick(context.Background())

	if p.callCount() != 0 {
		t.Errorf("Expected no save of a clean session, got %d calls", p.callCount())
	}
}

func TestAutoSaver_SavePayloadCarriesBaseVersion(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	base := s.State().Schema.UpdatedAt
	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)

	a.tick(context.Background())

	if p.callCount() != 1 {
		t.Fatal("Expected one save")
	}
	patch := p.lastCall()
	if !patch.BaseVersion.Equal(base) {
		t.Errorf("Expected base version %v, got %v", base, patch.BaseVersion)
	}
	if patch.Force {
		t.Error("Expected auto-save to respect the version check")
	}
	if patch.Fields == nil || (*patch.Fields)[0].Name != "Height" {
		t.Error("Expected the edited fields in the patch payload")
	}
}

func TestAutoSaver_AdoptsServerVersionOnSuccess(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())

	got := s.State().Schema.UpdatedAt
	want := p.lastCall().BaseVersion.Add(time.Second)
	if !got.Equal(want) {
		t.Errorf("Expected concurrency token advanced to %v, got %v", want, got)
	}
}

func TestAutoSaver_ConflictEntersConflictState(t *testing.T) {
	server := testSchema()
	server.Name = "Buttons (remote)"
	server.UpdatedAt = server.UpdatedAt.Add(time.Minute)

	p := &mockPersister{err: &ConflictError{Server: server}}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())

	st := s.State()
	if st.Status != StatusConflict {
		t.Fatalf("Expected conflict status, got %s", st.Status)
	}
	if st.Conflict == nil {
		t.Fatal("Expected a conflict record")
	}
	if st.Conflict.Server.Name != "Buttons (remote)" {
		t.Errorf("Expected server copy on the record, got %q", st.Conflict.Server.Name)
	}
	if st.Conflict.Local.Fields[0].Name != "Height" {
		t.Errorf("Expected local copy on the record, got %q", st.Conflict.Local.Fields[0].Name)
	}
	if len(st.Conflict.ConflictingFields) == 0 {
		t.Error("Expected conflicting fields identified")
	}
	if !st.Dirty {
		t.Error("Expected session still dirty while conflict pending")
	}
}

func TestAutoSaver_NoAutoSaveWhileConflictPending(t *testing.T) {
	server := testSchema()
	p := &mockPersister{err: &ConflictError{Server: server}}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())
	if p.callCount() != 1 {
		t.Fatal("Expected the conflicting save")
	}

	clock.Advance(time.Minute)
	a.tick(context.Background())

	if p.callCount() != 1 {
		t.Errorf("Expected no further saves while conflict pending, got %d", p.callCount())
	}
}

func TestAutoSaver_ResolveKeepServer(t *testing.T) {
	server := testSchema()
	server.Name = "Remote truth"
	server.UpdatedAt = server.UpdatedAt.Add(time.Minute)

	p := &mockPersister{err: &ConflictError{Server: server}}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())

	if err := a.ResolveConflict(context.Background(), ResolutionKeepServer); err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}

	st := s.State()
	if st.Dirty {
		t.Error("Expected clean state after keep_server")
	}
	if st.Schema.Name != "Remote truth" {
		t.Errorf("Expected server schema adopted, got %q", st.Schema.Name)
	}
	if st.Conflict != nil {
		t.Error("Expected conflict cleared")
	}
	if s.History().CanUndo() {
		t.Error("Expected history reset after adopting the server copy")
	}
}

func TestAutoSaver_ResolveKeepLocalForcesSave(t *testing.T) {
	server := testSchema()
	server.UpdatedAt = server.UpdatedAt.Add(time.Minute)

	p := &mockPersister{err: &ConflictError{Server: server}}
	a, s, clock := newTestAutoSaver(t, p, true)

	localName := "Local wins"
	if err := s.UpdateSchemaMeta(&localName, nil); err != nil {
		t.Fatalf("UpdateSchemaMeta failed: %v", err)
	}
	clock.Advance(3 * time.Second)
	a.tick(context.Background())
	if s.State().Status != StatusConflict {
		t.Fatal("Expected conflict")
	}

	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()

	if err := a.ResolveConflict(context.Background(), ResolutionKeepLocal); err != nil {
		t.Fatalf("ResolveConflict failed: %v", err)
	}

	patch := p.lastCall()
	if !patch.Force {
		t.Error("Expected keep_local to force past the version check")
	}
	if patch.Name == nil || *patch.Name != "Local wins" {
		t.Error("Expected the local payload to be the one sent")
	}
	st := s.State()
	if st.Status != StatusSaved || st.Conflict != nil {
		t.Errorf("Expected saved and conflict cleared, got %s", st.Status)
	}
}

func TestAutoSaver_ResolveMergeIsManual(t *testing.T) {
	server := testSchema()
	p := &mockPersister{err: &ConflictError{Server: server}}
	a, s, clock := newTestAutoSaver(t, p, true)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())

	err := a.ResolveConflict(context.Background(), ResolutionMerge)
	if !errors.Is(err, ErrManualMergeRequired) {
		t.Fatalf("Expected ErrManualMergeRequired, got %v", err)
	}
	// Both versions stay available for manual reconciliation.
	if s.State().Conflict == nil {
		t.Error("Expected conflict record retained")
	}
}

func TestAutoSaver_ResolveWithoutConflict(t *testing.T) {
	p := &mockPersister{}
	a, _, _ := newTestAutoSaver(t, p, false)

	if err := a.ResolveConflict(context.Background(), ResolutionKeepServer); !errors.Is(err, ErrNoConflict) {
		t.Errorf("Expected ErrNoConflict, got %v", err)
	}
}

func TestAutoSaver_BackoffStrictlyIncreasing(t *testing.T) {
	p := &mockPersister{}
	a, _, _ := newTestAutoSaver(t, p, false)

	prev := time.Duration(0)
	for attempt := 0; attempt < 3; attempt++ {
		d := a.backoffDelay(attempt)
		if d <= prev {
			t.Errorf("Attempt %d: delay %v not greater than previous %v", attempt, d, prev)
		}
		prev = d
	}
	if got := a.backoffDelay(2); got != 4*time.Second {
		t.Errorf("Expected 4s for third attempt, got %v", got)
	}
}

func TestAutoSaver_TerminalAfterMaxRetries(t *testing.T) {
	p := &mockPersister{err: &RequestError{Status: 503, Detail: "unavailable"}}
	a, s, clock := newTestAutoSaver(t, p, false)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)

	// Disabled timers: drive each attempt by hand. The initial attempt plus
	// maxRetries retries all fail.
	for attempt := 1; attempt <= 3; attempt++ {
		a.save(context.Background(), false)
		st := s.State()
		if st.Status != StatusError {
			t.Fatalf("Attempt %d: expected error status, got %s", attempt, st.Status)
		}
		if st.RetryCount != attempt {
			t.Errorf("Attempt %d: expected retry count %d, got %d", attempt, attempt, st.RetryCount)
		}
	}

	// The next failure exhausts the budget and goes terminal.
	a.save(context.Background(), false)
	if a.RetryCount() != 0 {
		t.Errorf("Expected retry counter reset at terminal failure, got %d", a.RetryCount())
	}
	if st := s.State(); st.Status != StatusError {
		t.Errorf("Expected terminal error status, got %s", st.Status)
	}
	if p.callCount() != 4 {
		t.Errorf("Expected 4 attempts total, got %d", p.callCount())
	}
}

func TestAutoSaver_TerminalFailureParksUntilNewEdit(t *testing.T) {
	p := &mockPersister{err: &RequestError{Status: 503, Detail: "unavailable"}}
	a, s, clock := newTestAutoSaver(t, p, false)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)

	// Initial attempt plus three retries, all failing: terminal.
	for i := 0; i < 4; i++ {
		a.save(context.Background(), false)
	}
	attempts := p.callCount()

	// The session is still dirty, but with nothing new to send the
	// interval must not keep hammering a failing backend.
	a.Enable()
	clock.Advance(3 * time.Second)
	a.tick(context.Background())
	if p.callCount() != attempts {
		t.Fatalf("Expected the engine parked after a terminal failure, got %d extra attempts",
			p.callCount()-attempts)
	}

	// A fresh edit re-arms the trigger.
	p.mu.Lock()
	p.err = nil
	p.mu.Unlock()
	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.tick(context.Background())
	if p.callCount() != attempts+1 {
		t.Fatalf("Expected one save after new activity, got %d extra attempts",
			p.callCount()-attempts)
	}
	if st := s.State(); st.Status != StatusSaved {
		t.Errorf("Expected status saved, got %s", st.Status)
	}
}

func TestAutoSaver_TerminalRequestErrorNotRetried(t *testing.T) {
	p := &mockPersister{err: &RequestError{Status: 422, Detail: "invalid"}}
	a, s, clock := newTestAutoSaver(t, p, false)

	dirtyEdit(t, s)
	clock.Advance(3 * time.Second)
	a.save(context.Background(), false)

	st := s.State()
	if st.Status != StatusError {
		t.Fatalf("Expected error status, got %s", st.Status)
	}
	if st.RetryCount != 0 {
		t.Errorf("Expected no retries for a 4xx failure, got retry count %d", st.RetryCount)
	}
	if a.RetryCount() != 0 {
		t.Errorf("Expected retry counter untouched, got %d", a.RetryCount())
	}
}

func TestAutoSaver_ManualSaveBypassesQuietWindow(t *testing.T) {
	p := &mockPersister{}
	a, s, _ := newTestAutoSaver(t, p, false)

	dirtyEdit(t, s)
	// No clock advance: activity is recent, but a manual save goes now.
	if !a.ManualSave(context.Background()) {
		t.Fatal("Expected manual save to succeed")
	}
	if p.callCount() != 1 {
		t.Errorf("Expected 1 persistence call, got %d", p.callCount())
	}
	if s.State().Status != StatusSaved {
		t.Errorf("Expected saved status, got %s", s.State().Status)
	}
}

func TestAutoSaver_RecoverySnapshotLifecycle(t *testing.T) {
	p := &mockPersister{err: &RequestError{Status: 422, Detail: "rejected"}}
	s, clock := newTestSession(t)
	storage := NewMemoryStorage()
	a := NewAutoSaver(s, p, storage, AutoSaverConfig{
		QuietWindow: 2 * time.Second,
		RecoveryTTL: time.Hour,
	}, WithSaverClock(clock.Now))
	t.Cleanup(a.Close)

	dirtyEdit(t, s)
	schemaID := s.State().SchemaID()
	clock.Advance(3 * time.Second)

	// The save fails terminally; the snapshot written before the attempt
	// survives for recovery.
	a.save(context.Background(), false)

	snapshot, err := a.CheckRecovery(schemaID)
	if err != nil {
		t.Fatalf("CheckRecovery failed: %v", err)
	}
	if snapshot == nil {
		t.Fatal("Expected a recovery snapshot")
	}
	if snapshot.Schema.Fields[0].Name != "Height" {
		t.Errorf("Expected unsaved edit in snapshot, got %q", snapshot.Schema.Fields[0].Name)
	}
	if snapshot.SessionID != s.ID() {
		t.Error("Expected session ID embedded in snapshot")
	}

	// Restoring replays schema and unsaved tracking into the session.
	fresh := NewSession(WithClock(clock.Now))
	restorer := NewAutoSaver(fresh, p, storage, AutoSaverConfig{RecoveryTTL: time.Hour}, WithSaverClock(clock.Now))
	t.Cleanup(restorer.Close)
	restorer.RestoreRecovery(snapshot)

	st := fresh.State()
	if st.SchemaID() != schemaID {
		t.Errorf("Expected restored schema %s, got %s", schemaID, st.SchemaID())
	}
	if !st.Dirty {
		t.Error("Expected restored session dirty")
	}

	if err := a.DiscardRecovery(schemaID); err != nil {
		t.Fatalf("DiscardRecovery failed: %v", err)
	}
	if snap, _ := a.CheckRecovery(schemaID); snap != nil {
		t.Error("Expected snapshot discarded")
	}
}

func TestAutoSaver_RecoverySnapshotRemovedOnSuccess(t *testing.T) {
	p := &mockPersister{}
	s, clock := newTestSession(t)
	storage := NewMemoryStorage()
	a := NewAutoSaver(s, p, storage, AutoSaverConfig{
		QuietWindow: 2 * time.Second,
	}, WithSaverClock(clock.Now))
	t.Cleanup(a.Close)

	dirtyEdit(t, s)
	schemaID := s.State().SchemaID()
	clock.Advance(3 * time.Second)

	a.save(context.Background(), false)

	if _, ok, _ := storage.GetItem("recovery:" + schemaID); ok {
		t.Error("Expected recovery snapshot removed after successful save")
	}
}

func TestAutoSaver_StaleRecoveryDiscardedUnread(t *testing.T) {
	p := &mockPersister{err: &RequestError{Status: 500, Detail: "boom"}}
	s, clock := newTestSession(t)
	storage := NewMemoryStorage()
	a := NewAutoSaver(s, p, storage, AutoSaverConfig{
		QuietWindow: 2 * time.Second,
		RecoveryTTL: time.Hour,
	}, WithSaverClock(clock.Now))
	t.Cleanup(a.Close)

	dirtyEdit(t, s)
	schemaID := s.State().SchemaID()
	clock.Advance(3 * time.Second)
	a.save(context.Background(), false)

	clock.Advance(2 * time.Hour)

	snapshot, err := a.CheckRecovery(schemaID)
	if err != nil {
		t.Fatalf("CheckRecovery failed: %v", err)
	}
	if snapshot != nil {
		t.Error("Expected stale snapshot discarded")
	}
	if _, ok, _ := storage.GetItem("recovery:" + schemaID); ok {
		t.Error("Expected stale snapshot removed from storage")
	}
}

func TestAutoSaver_EnableDisable(t *testing.T) {
	p := &mockPersister{}
	a, s, clock := newTestAutoSaver(t, p, true)

	a.Disable()
	if a.Enabled() {
		t.Fatal("Expected disabled")
	}

	dirtyEdit(t, s)
	clock.Advance(time.Minute)
	a.tick(context.Background())
	if p.callCount() != 0 {
		t.Errorf("Expected no saves while disabled, got %d", p.callCount())
	}

	a.Enable()
	a.tick(context.Background())
	if p.callCount() != 1 {
		t.Errorf("Expected save after re-enable, got %d", p.callCount())
	}
}
