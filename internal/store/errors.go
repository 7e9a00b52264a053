package store

import "errors"

var (
	ErrNotFound        = errors.New("schema not found")
	ErrDuplicateName   = errors.New("schema name already in use")
	ErrVersionConflict = errors.New("schema version conflict")
)
