package editor

import (
	"errors"
	"fmt"

	"github.com/draftworks/schemadesk/internal/types"
)

var (
	// ErrNoActiveSchema indicates an operation that needs an active schema.
	ErrNoActiveSchema = errors.New("no active schema")

	// ErrNoEditBuffer indicates a field update without a started edit.
	ErrNoEditBuffer = errors.New("no edit buffer for field")

	// ErrFieldNotFound indicates the referenced field is not in the schema.
	ErrFieldNotFound = errors.New("field not found in schema")

	// ErrInvalidOrder indicates a reorder that is not a permutation of the
	// schema's current field IDs.
	ErrInvalidOrder = errors.New("reorder is not a permutation of current fields")

	// ErrNoConflict indicates a conflict resolution without a pending conflict.
	ErrNoConflict = errors.New("no conflict to resolve")

	// ErrManualMergeRequired indicates the merge resolution, which is a
	// manual reconciliation path: both versions stay available on the
	// conflict record and nothing is discarded automatically.
	ErrManualMergeRequired = errors.New("merge requires manual field-level reconciliation")
)

// ConflictError is returned by the persistence client when the server's
// schema version is newer than the one the patch was based on. Server holds
// the current remote row.
type ConflictError struct {
	Server *types.Schema
}

func (e *ConflictError) Error() string {
	return "schema version conflict: server copy is newer"
}

// RequestError is a non-conflict HTTP failure from the persistence client.
type RequestError struct {
	Status int
	Detail string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Detail)
}

// IsRetryable reports whether a persistence failure is transient. Conflicts
// and 4xx responses need caller action and are never retried; transport
// errors and 5xx responses are.
func IsRetryable(err error) bool {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return false
	}
	var req *RequestError
	if errors.As(err, &req) {
		return req.Status >= 500
	}
	return err != nil
}
