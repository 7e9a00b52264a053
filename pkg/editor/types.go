// Package editor implements the client-held editing session for component
// schemas: a reducer-based session store, an undo/redo engine with operation
// grouping, an auto-save engine with conflict detection and retry, and a
// bounded TTL cache for fetched schema data.
package editor

import (
	"time"

	"github.com/draftworks/schemadesk/internal/types"
)

// SaveStatus is the auto-save engine's externally visible state.
type SaveStatus string

const (
	StatusIdle     SaveStatus = "idle"
	StatusSaving   SaveStatus = "saving"
	StatusSaved    SaveStatus = "saved"
	StatusError    SaveStatus = "error"
	StatusConflict SaveStatus = "conflict"
)

// Resolution selects how a version conflict is settled.
type Resolution string

const (
	ResolutionKeepLocal  Resolution = "keep_local"
	ResolutionKeepServer Resolution = "keep_server"
	ResolutionMerge      Resolution = "merge"
)

// EditBuffer tracks one field's in-progress edit. Original is the committed
// value the edit started from; Current may be invalid mid-edit.
type EditBuffer struct {
	FieldID  string      `json:"field_id"`
	Original types.Field `json:"original"`
	Current  types.Field `json:"current"`
	Dirty    bool        `json:"dirty"`
	Errors   []string    `json:"errors,omitempty"`
}

// ConflictRecord captures a detected version conflict. It exists only
// between detection and resolution.
type ConflictRecord struct {
	SchemaID          string       `json:"schema_id"`
	Local             types.Schema `json:"local"`
	Server            types.Schema `json:"server"`
	ConflictingFields []string     `json:"conflicting_fields,omitempty"`
	DetectedAt        time.Time    `json:"detected_at"`
}

// RecoverySnapshot is the crash-recovery payload written to durable local
// storage before each save attempt, keyed "recovery:<schemaID>".
type RecoverySnapshot struct {
	SessionID   string                `json:"session_id"`
	Timestamp   time.Time             `json:"timestamp"`
	Schema      types.Schema          `json:"schema"`
	EditBuffers map[string]EditBuffer `json:"edit_buffers"`
	ChangeIDs   []string              `json:"change_ids,omitempty"`
}

// State is the edit session's full observable state. Values handed to
// callers are snapshots; mutating them has no effect on the session.
type State struct {
	Schema         *types.Schema
	Buffers        map[string]EditBuffer
	Selected       map[string]struct{}
	Unsaved        map[string]struct{}
	Dirty          bool
	Status         SaveStatus
	SaveError      string
	RetryCount     int
	Conflict       *ConflictRecord
	LastSavedAt    time.Time
	LastActivityAt time.Time
}

// SchemaID returns the active schema's ID, or "" when none is active.
func (s State) SchemaID() string {
	if s.Schema == nil {
		return ""
	}
	return s.Schema.ID
}

// IsSelected reports whether the field is in the selection set.
func (s State) IsSelected(fieldID string) bool {
	_, ok := s.Selected[fieldID]
	return ok
}
