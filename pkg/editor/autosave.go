package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/draftworks/schemadesk/internal/types"
)

const (
	// DefaultSaveInterval is the auto-save debounce/interval timer.
	DefaultSaveInterval = 30 * time.Second

	// DefaultQuietWindow is how long user activity must have settled
	// before an auto-save fires.
	DefaultQuietWindow = 2 * time.Second

	// DefaultMaxRetries bounds automatic retries of a failed save.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the backoff base: retryDelay * 2^retryCount.
	DefaultRetryDelay = time.Second

	// DefaultRecoveryTTL is the staleness bound for crash-recovery
	// snapshots; older entries are discarded unread.
	DefaultRecoveryTTL = time.Hour
)

// Persister is the remote persistence boundary. Implementations report
// version conflicts via *ConflictError and terminal request failures via
// *RequestError; anything else is treated as transient.
type Persister interface {
	UpdateSchema(ctx context.Context, id string, patch types.SchemaPatch) (*types.Schema, error)
}

// Storage is the durable local storage boundary, used only for
// crash-recovery snapshots.
type Storage interface {
	SetItem(key, value string) error
	GetItem(key string) (string, bool, error)
	RemoveItem(key string) error
}

// AutoSaverConfig carries the engine's tunables; zero values fall back to
// the package defaults.
type AutoSaverConfig struct {
	Enabled     bool
	Interval    time.Duration
	QuietWindow time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RecoveryTTL time.Duration
}

func (c AutoSaverConfig) withDefaults() AutoSaverConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultSaveInterval
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = DefaultQuietWindow
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RecoveryTTL <= 0 {
		c.RecoveryTTL = DefaultRecoveryTTL
	}
	return c
}

// AutoSaver drives persistence for one Session: it observes dirty state and
// activity recency, fires save attempts on an interval, retries transient
// failures with exponential backoff, and keeps a durable recovery snapshot
// for crash recovery. Save failures never escape it; they always resolve
// into one of the session's statuses.
type AutoSaver struct {
	mu        sync.Mutex
	session   *Session
	persister Persister
	storage   Storage
	cfg       AutoSaverConfig

	enabled       bool
	saving        bool
	retryCount    int
	haltedAt      time.Time
	intervalTimer *time.Timer
	retryTimer    *time.Timer
	closed        bool
	now           func() time.Time
}

// AutoSaverOption configures an AutoSaver.
type AutoSaverOption func(*AutoSaver)

// WithSaverClock overrides the engine's time source, for tests.
func WithSaverClock(now func() time.Time) AutoSaverOption {
	return func(a *AutoSaver) { a.now = now }
}

// NewAutoSaver creates an auto-save engine over the given session. Call
// Start to arm the interval timer.
func NewAutoSaver(session *Session, persister Persister, storage Storage, cfg AutoSaverConfig, opts ...AutoSaverOption) *AutoSaver {
	a := &AutoSaver{
		session:   session,
		persister: persister,
		storage:   storage,
		cfg:       cfg.withDefaults(),
		enabled:   cfg.Enabled,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start arms the auto-save interval timer.
func (a *AutoSaver) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.scheduleIntervalLocked()
}

// Close stops all timers. An in-flight save is not cancelled; its
// resolution still lands in the session.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.stopTimersLocked()
}

// Enable turns automatic saving on and arms the interval timer.
func (a *AutoSaver) Enable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	if !a.closed {
		a.scheduleIntervalLocked()
	}
}

// Disable turns automatic saving off and clears pending timers. It does not
// cancel an already-in-flight save.
func (a *AutoSaver) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.stopTimersLocked()
}

// Enabled reports whether automatic saving is on.
func (a *AutoSaver) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *AutoSaver) stopTimersLocked() {
	if a.intervalTimer != nil {
		a.intervalTimer.Stop()
		a.intervalTimer = nil
	}
	if a.retryTimer != nil {
		a.retryTimer.Stop()
		a.retryTimer = nil
	}
}

func (a *AutoSaver) scheduleIntervalLocked() {
	if !a.enabled || a.closed {
		return
	}
	if a.intervalTimer != nil {
		a.intervalTimer.Stop()
	}
	a.intervalTimer = time.AfterFunc(a.cfg.Interval, func() {
		a.tick(context.Background())
	})
}

// tick is one interval firing: attempt a save when the trigger conditions
// hold, then re-arm. Exposed to tests via direct call.
func (a *AutoSaver) tick(ctx context.Context) {
	if a.shouldSave() {
		a.save(ctx, false)
	}
	a.mu.Lock()
	a.scheduleIntervalLocked()
	a.mu.Unlock()
}

// shouldSave checks the idle -> saving trigger: enabled, dirty, not already
// saving, no unresolved conflict, and user activity settled for at least
// the quiet window. After a terminal failure the engine stays parked until
// an edit lands; ManualSave bypasses this gate.
func (a *AutoSaver) shouldSave() bool {
	a.mu.Lock()
	enabled := a.enabled && !a.saving && !a.closed
	now := a.now()
	haltedAt := a.haltedAt
	a.mu.Unlock()
	if !enabled {
		return false
	}

	st := a.session.State()
	if st.Schema == nil || !st.Dirty || st.Conflict != nil {
		return false
	}
	if !haltedAt.IsZero() && !st.LastActivityAt.After(haltedAt) {
		return false
	}
	return now.Sub(st.LastActivityAt) >= a.cfg.QuietWindow
}

// ManualSave cancels pending auto-save and retry timers and performs a save
// attempt immediately. Returns true when the save succeeded.
func (a *AutoSaver) ManualSave(ctx context.Context) bool {
	a.mu.Lock()
	a.stopTimersLocked()
	a.mu.Unlock()

	ok := a.save(ctx, false)

	a.mu.Lock()
	a.scheduleIntervalLocked()
	a.mu.Unlock()
	return ok
}

// save performs one persistence attempt. It captures a snapshot of the
// dirty data at the moment the session transitions to saving; mutations
// that land during the flight stay dirty for the next cycle. force skips
// the version check once (keep_local resolution).
func (a *AutoSaver) save(ctx context.Context, force bool) bool {
	a.mu.Lock()
	if a.saving || a.closed {
		a.mu.Unlock()
		return false
	}
	a.saving = true
	a.mu.Unlock()

	done := func(ok bool) bool {
		a.mu.Lock()
		a.saving = false
		a.mu.Unlock()
		return ok
	}

	st := a.session.State()
	if st.Schema == nil {
		return done(false)
	}
	snapshot := a.buildSnapshot(st)

	// The recovery snapshot lands in durable storage before the remote
	// call so a crash mid-save can still recover the unsent edits.
	if err := a.writeRecovery(snapshot); err != nil {
		slog.Warn("recovery snapshot write failed",
			"component", "autosave",
			"schema_id", st.Schema.ID,
			"error", err,
		)
	}

	a.session.dispatch(markSaving{})

	schema := snapshot.Schema
	patch := types.SchemaPatch{
		Name:        &schema.Name,
		Description: &schema.Description,
		Fields:      &schema.Fields,
		BaseVersion: schema.UpdatedAt,
		Force:       force,
	}

	updated, err := a.persister.UpdateSchema(ctx, schema.ID, patch)
	if err == nil {
		now := a.now()
		var version time.Time
		if updated != nil {
			version = updated.UpdatedAt
		}
		a.session.dispatch(markSaved{at: now, version: version, changes: snapshot.ChangeIDs})
		if rerr := a.storage.RemoveItem(recoveryKey(schema.ID)); rerr != nil {
			slog.Warn("recovery snapshot removal failed",
				"component", "autosave",
				"schema_id", schema.ID,
				"error", rerr,
			)
		}
		a.mu.Lock()
		a.retryCount = 0
		a.haltedAt = time.Time{}
		a.mu.Unlock()
		slog.Info("schema saved",
			"component", "autosave",
			"schema_id", schema.ID,
			"changes", len(snapshot.ChangeIDs),
		)
		return done(true)
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		record := &ConflictRecord{
			SchemaID:   schema.ID,
			Local:      schema,
			DetectedAt: a.now(),
		}
		if conflict.Server != nil {
			record.Server = conflict.Server.Clone()
			record.ConflictingFields = conflictingFields(schema, record.Server)
		}
		a.session.dispatch(markConflict{conflict: record})
		slog.Warn("schema save conflict",
			"component", "autosave",
			"schema_id", schema.ID,
			"conflicting_fields", len(record.ConflictingFields),
		)
		return done(false)
	}

	if !IsRetryable(err) {
		a.mu.Lock()
		a.retryCount = 0
		a.haltedAt = a.now()
		a.mu.Unlock()
		a.session.dispatch(markSaveError{message: err.Error()})
		slog.Error("schema save failed terminally",
			"component", "autosave",
			"schema_id", schema.ID,
			"error", err,
		)
		return done(false)
	}

	a.mu.Lock()
	retryCount := a.retryCount
	if retryCount < a.cfg.MaxRetries {
		delay := a.backoffDelay(retryCount)
		a.retryCount++
		if a.enabled && !a.closed {
			if a.retryTimer != nil {
				a.retryTimer.Stop()
			}
			a.retryTimer = time.AfterFunc(delay, func() {
				a.save(context.Background(), false)
			})
		}
		current := a.retryCount
		a.mu.Unlock()
		a.session.dispatch(markSaveError{message: err.Error(), retryCount: current})
		slog.Warn("schema save failed, retry scheduled",
			"component", "autosave",
			"schema_id", schema.ID,
			"retry", current,
			"delay", delay.String(),
			"error", err,
		)
		return done(false)
	}
	a.retryCount = 0
	a.haltedAt = a.now()
	a.mu.Unlock()
	a.session.dispatch(markSaveError{message: err.Error(), retryCount: retryCount})
	slog.Error("schema save failed, retries exhausted",
		"component", "autosave",
		"schema_id", schema.ID,
		"attempts", retryCount,
		"error", err,
	)
	return done(false)
}

// ResolveConflict settles a pending version conflict. keep_local re-issues
// the save forcing the local payload; keep_server adopts the server's
// schema and marks the session clean; merge is a manual path and returns
// ErrManualMergeRequired with both versions intact on the record.
func (a *AutoSaver) ResolveConflict(ctx context.Context, resolution Resolution) error {
	st := a.session.State()
	if st.Conflict == nil {
		return ErrNoConflict
	}

	switch resolution {
	case ResolutionKeepLocal:
		// Re-issue the local payload with the version check skipped once.
		if !a.save(ctx, true) {
			return fmt.Errorf("forced save failed for schema %s", st.Conflict.SchemaID)
		}
		return nil

	case ResolutionKeepServer:
		server := st.Conflict.Server.Clone()
		a.session.history.Reset()
		a.session.dispatch(adoptServerSchema{schema: &server})
		if err := a.storage.RemoveItem(recoveryKey(server.ID)); err != nil {
			slog.Warn("recovery snapshot removal failed",
				"component", "autosave",
				"schema_id", server.ID,
				"error", err,
			)
		}
		a.mu.Lock()
		a.retryCount = 0
		a.mu.Unlock()
		return nil

	case ResolutionMerge:
		return ErrManualMergeRequired

	default:
		return fmt.Errorf("unknown conflict resolution %q", resolution)
	}
}

// buildSnapshot captures the schema, open edit buffers, and unsaved change
// identifiers at one instant.
func (a *AutoSaver) buildSnapshot(st State) RecoverySnapshot {
	buffers := make(map[string]EditBuffer, len(st.Buffers))
	for id, buf := range st.Buffers {
		buffers[id] = buf
	}
	changes := make([]string, 0, len(st.Unsaved))
	for id := range st.Unsaved {
		changes = append(changes, id)
	}
	sort.Strings(changes)
	return RecoverySnapshot{
		SessionID:   a.session.ID(),
		Timestamp:   a.now(),
		Schema:      st.Schema.Clone(),
		EditBuffers: buffers,
		ChangeIDs:   changes,
	}
}

func (a *AutoSaver) writeRecovery(snapshot RecoverySnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal recovery snapshot: %w", err)
	}
	return a.storage.SetItem(recoveryKey(snapshot.Schema.ID), string(data))
}

// CheckRecovery looks up a durable recovery snapshot for the schema. Stale
// entries (older than the recovery TTL) are discarded unread.
func (a *AutoSaver) CheckRecovery(schemaID string) (*RecoverySnapshot, error) {
	raw, ok, err := a.storage.GetItem(recoveryKey(schemaID))
	if err != nil {
		return nil, fmt.Errorf("read recovery snapshot: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var snapshot RecoverySnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		// A corrupt snapshot is unrecoverable; drop it.
		a.storage.RemoveItem(recoveryKey(schemaID))
		return nil, fmt.Errorf("decode recovery snapshot: %w", err)
	}

	if a.now().Sub(snapshot.Timestamp) > a.cfg.RecoveryTTL {
		a.storage.RemoveItem(recoveryKey(schemaID))
		return nil, nil
	}
	return &snapshot, nil
}

// RestoreRecovery replays a recovery snapshot into the session: schema,
// edit buffers, and unsaved change tracking.
func (a *AutoSaver) RestoreRecovery(snapshot *RecoverySnapshot) {
	a.session.history.Reset()
	a.session.dispatch(restoreSnapshot{snapshot: snapshot})
}

// DiscardRecovery removes the durable snapshot for a schema.
func (a *AutoSaver) DiscardRecovery(schemaID string) error {
	return a.storage.RemoveItem(recoveryKey(schemaID))
}

// backoffDelay is the exponential retry schedule: retryDelay * 2^attempt.
func (a *AutoSaver) backoffDelay(attempt int) time.Duration {
	return a.cfg.RetryDelay * (1 << attempt)
}

// RetryCount returns the current retry counter, for observability.
func (a *AutoSaver) RetryCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.retryCount
}

func recoveryKey(schemaID string) string {
	return "recovery:" + schemaID
}

// conflictingFields reports the names of fields whose local and server
// definitions differ, plus fields present on only one side, plus the
// schema-level name/description when those diverge.
func conflictingFields(local, server types.Schema) []string {
	var out []string
	if local.Name != server.Name {
		out = append(out, "name")
	}
	if local.Description != server.Description {
		out = append(out, "description")
	}

	serverByID := make(map[string]types.Field, len(server.Fields))
	for _, f := range server.Fields {
		serverByID[f.ID] = f
	}
	seen := make(map[string]struct{}, len(local.Fields))
	for _, lf := range local.Fields {
		seen[lf.ID] = struct{}{}
		sf, ok := serverByID[lf.ID]
		if !ok {
			out = append(out, lf.Name)
			continue
		}
		if !fieldsEqual(lf, sf) {
			out = append(out, lf.Name)
		}
	}
	for _, sf := range server.Fields {
		if _, ok := seen[sf.ID]; !ok {
			out = append(out, sf.Name)
		}
	}
	return out
}
