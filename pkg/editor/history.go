package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/draftworks/schemadesk/internal/types"
)

// OpType tags a reversible operation. The set is closed: adding a new
// reversible action means registering a new executor; an unknown type at
// undo/redo time is a programming error, not a recoverable condition.
type OpType string

const (
	OpFieldAdded      OpType = "field_added"
	OpFieldEdited     OpType = "field_edited"
	OpFieldDeleted    OpType = "field_deleted"
	OpFieldsReordered OpType = "fields_reordered"
	OpSchemaEdited    OpType = "schema_edited"
	OpGrouped         OpType = "grouped"
)

const (
	// DefaultMaxOperations bounds each stack; the oldest entry is dropped
	// on overflow.
	DefaultMaxOperations = 50

	// DefaultRetention is how long operations stay undoable before the
	// periodic sweep drops them.
	DefaultRetention = time.Hour

	// DefaultGroupWindow is the inactivity window after which an open
	// group flushes itself.
	DefaultGroupWindow = time.Second
)

var errBadPayload = errors.New("unexpected operation payload type")

// FieldEditPayload carries one field value for apply/invert.
type FieldEditPayload struct {
	FieldID string
	Value   types.Field
}

// FieldAddPayload carries a full field and its position. Used by both the
// add and delete operations: applying an add inserts, inverting it removes,
// and vice versa.
type FieldAddPayload struct {
	Field types.Field
	Index int
}

// ReorderPayload carries a complete field ID ordering.
type ReorderPayload struct {
	Order []string
}

// SchemaMetaPayload carries schema property edits; nil means unchanged.
type SchemaMetaPayload struct {
	Name        *string
	Description *string
}

// Operation is an immutable record of one reversible state change. Data is
// sufficient to re-apply it, UndoData to reverse it. Grouped operations
// carry their children instead.
type Operation struct {
	ID          string
	Type        OpType
	Timestamp   time.Time
	Description string
	Data        any
	UndoData    any
	Children    []Operation
}

// Executor applies and inverts operations of one type. Apply receives the
// operation's forward payload, Invert its inverse payload.
type Executor struct {
	Apply  func(payload any) error
	Invert func(payload any) error
}

// History is the undo/redo engine: two bounded stacks of operations plus an
// optional open group that batches rapid mutations into a single undoable
// unit. A failed executor leaves both stacks unchanged.
type History struct {
	mu          sync.Mutex
	undo        []Operation
	redo        []Operation
	maxSize     int
	retention   time.Duration
	groupWindow time.Duration
	executors   map[OpType]Executor
	pending     *pendingGroup
	groupGen    int
	groupTimer  *time.Timer
	now         func() time.Time
	onChange    func()
}

type pendingGroup struct {
	description string
	ops         []Operation
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithMaxOperations bounds the undo and redo stacks.
func WithMaxOperations(n int) HistoryOption {
	return func(h *History) { h.maxSize = n }
}

// WithRetention sets how long operations survive the periodic sweep.
func WithRetention(d time.Duration) HistoryOption {
	return func(h *History) { h.retention = d }
}

// WithGroupWindow sets the group inactivity flush window.
func WithGroupWindow(d time.Duration) HistoryOption {
	return func(h *History) { h.groupWindow = d }
}

// WithHistoryClock overrides the engine's time source, for tests.
func WithHistoryClock(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// NewHistory creates an undo/redo engine with default bounds.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		maxSize:     DefaultMaxOperations,
		retention:   DefaultRetention,
		groupWindow: DefaultGroupWindow,
		executors:   map[OpType]Executor{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterExecutor installs the executor for one operation type.
func (h *History) RegisterExecutor(t OpType, e Executor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.executors[t] = e
}

// AddOperation records a reversible operation. Outside a group it lands on
// the undo stack immediately and clears the redo stack; inside a group it
// accumulates and resets the group's inactivity timer.
func (h *History) AddOperation(t OpType, data, undoData any, description string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	op := Operation{
		ID:          ulid.Make().String(),
		Type:        t,
		Timestamp:   h.clock()(),
		Description: description,
		Data:        data,
		UndoData:    undoData,
	}

	if h.pending != nil {
		h.pending.ops = append(h.pending.ops, op)
		h.resetGroupTimerLocked()
		return
	}

	h.pushLocked(op)
}

// StartGroup opens an operation group. An already-open group is flushed
// first; groups do not nest.
func (h *History) StartGroup(description string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.flushGroupLocked()
	h.pending = &pendingGroup{description: description}
	h.resetGroupTimerLocked()
}

// EndGroup flushes the open group, if any. One accumulated operation is
// pushed plain; several are wrapped into a single composite operation.
func (h *History) EndGroup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushGroupLocked()
}

func (h *History) flushGroupLocked() {
	h.groupGen++
	if h.groupTimer != nil {
		h.groupTimer.Stop()
		h.groupTimer = nil
	}

	g := h.pending
	h.pending = nil
	if g == nil || len(g.ops) == 0 {
		return
	}

	if len(g.ops) == 1 {
		h.pushLocked(g.ops[0])
		return
	}

	h.pushLocked(Operation{
		ID:          ulid.Make().String(),
		Type:        OpGrouped,
		Timestamp:   h.clock()(),
		Description: g.description,
		Children:    g.ops,
	})
}

// resetGroupTimerLocked (re)arms the inactivity flush. The generation check
// keeps a stale timer from flushing a group opened after it was armed.
func (h *History) resetGroupTimerLocked() {
	h.groupGen++
	gen := h.groupGen
	if h.groupTimer != nil {
		h.groupTimer.Stop()
	}
	h.groupTimer = time.AfterFunc(h.groupWindow, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.groupGen != gen {
			return
		}
		h.flushGroupLocked()
	})
}

func (h *History) pushLocked(op Operation) {
	h.undo = append(h.undo, op)
	if len(h.undo) > h.maxSize {
		h.undo = h.undo[1:]
	}
	h.redo = nil
}

// Undo reverses the most recent operation and moves it to the redo stack.
// Returns false when the stack is empty or the executor fails; a failed
// operation is put back, so both stacks read unchanged. Any open group is
// flushed first so grouped mutations can never be undone partially.
//
// The operation is popped before its executor runs and the lock is
// released for the duration: executors dispatch into the session, whose
// observers may call back into this engine.
func (h *History) Undo() bool {
	h.mu.Lock()
	h.flushGroupLocked()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return false
	}
	op := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.mu.Unlock()

	if err := h.invert(op); err != nil {
		slog.Error("undo failed",
			"component", "history",
			"op_type", string(op.Type),
			"op_id", op.ID,
			"error", err,
		)
		h.mu.Lock()
		h.undo = append(h.undo, op)
		h.mu.Unlock()
		return false
	}

	h.mu.Lock()
	h.redo = append(h.redo, op)
	if len(h.redo) > h.maxSize {
		h.redo = h.redo[1:]
	}
	h.mu.Unlock()

	h.notifyChange()
	return true
}

// Redo re-applies the most recently undone operation and moves it back to
// the undo stack. Locking mirrors Undo: the executor runs unlocked.
func (h *History) Redo() bool {
	h.mu.Lock()
	h.flushGroupLocked()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return false
	}
	op := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.mu.Unlock()

	if err := h.apply(op); err != nil {
		slog.Error("redo failed",
			"component", "history",
			"op_type", string(op.Type),
			"op_id", op.ID,
			"error", err,
		)
		h.mu.Lock()
		h.redo = append(h.redo, op)
		h.mu.Unlock()
		return false
	}

	h.mu.Lock()
	h.undo = append(h.undo, op)
	if len(h.undo) > h.maxSize {
		h.undo = h.undo[1:]
	}
	h.mu.Unlock()

	h.notifyChange()
	return true
}

// invert reverses one operation, without holding the lock. Composite
// children are inverted in reverse order (last-applied-first); if a child
// fails, the already inverted children are re-applied so no partial
// reversal is left behind.
func (h *History) invert(op Operation) error {
	if op.Type == OpGrouped {
		for i := len(op.Children) - 1; i >= 0; i-- {
			if err := h.invert(op.Children[i]); err != nil {
				for j := i + 1; j < len(op.Children); j++ {
					if aerr := h.apply(op.Children[j]); aerr != nil {
						slog.Error("rollback of partial undo failed",
							"component", "history",
							"op_id", op.Children[j].ID,
							"error", aerr,
						)
					}
				}
				return err
			}
		}
		return nil
	}

	exec, ok := h.executor(op.Type)
	if !ok {
		return fmt.Errorf("no executor registered for operation type %q", op.Type)
	}
	return exec.Invert(op.UndoData)
}

// apply re-applies one operation, without holding the lock; composite
// children run in original order, with the symmetric rollback on
// mid-failure.
func (h *History) apply(op Operation) error {
	if op.Type == OpGrouped {
		for i := 0; i < len(op.Children); i++ {
			if err := h.apply(op.Children[i]); err != nil {
				for j := i - 1; j >= 0; j-- {
					if ierr := h.invert(op.Children[j]); ierr != nil {
						slog.Error("rollback of partial redo failed",
							"component", "history",
							"op_id", op.Children[j].ID,
							"error", ierr,
						)
					}
				}
				return err
			}
		}
		return nil
	}

	exec, ok := h.executor(op.Type)
	if !ok {
		return fmt.Errorf("no executor registered for operation type %q", op.Type)
	}
	return exec.Apply(op.Data)
}

func (h *History) executor(t OpType) (Executor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.executors[t]
	return e, ok
}

func (h *History) notifyChange() {
	h.mu.Lock()
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// CanUndo reports whether an undo would act (pending group included).
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0 || (h.pending != nil && len(h.pending.ops) > 0)
}

// CanRedo reports whether a redo would act.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// UndoLen returns the undo stack depth (flushed operations only).
func (h *History) UndoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

// RedoLen returns the redo stack depth.
func (h *History) RedoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}

// PeekUndo returns the description of the next operation to undo.
func (h *History) PeekUndo() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return "", false
	}
	return h.undo[len(h.undo)-1].Description, true
}

// Reset drops both stacks and any open group.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.groupGen++
	if h.groupTimer != nil {
		h.groupTimer.Stop()
		h.groupTimer = nil
	}
	h.pending = nil
	h.undo = nil
	h.redo = nil
}

// Sweep drops operations older than the retention window from both stacks,
// regardless of occupancy. Returns the number removed.
func (h *History) Sweep() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.clock()().Add(-h.retention)
	removed := 0
	h.undo, removed = dropOlder(h.undo, cutoff, removed)
	h.redo, removed = dropOlder(h.redo, cutoff, removed)
	return removed
}

func dropOlder(ops []Operation, cutoff time.Time, removed int) ([]Operation, int) {
	kept := ops[:0]
	for _, op := range ops {
		if op.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	return kept, removed
}

// Run sweeps expired operations periodically until ctx is cancelled.
func (h *History) Run(ctx context.Context) {
	interval := h.retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := h.Sweep(); removed > 0 {
				slog.Debug("history sweep completed",
					"component", "history",
					"removed", removed,
				)
			}
		}
	}
}

func (h *History) clock() func() time.Time {
	if h.now != nil {
		return h.now
	}
	return time.Now
}
