package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrVersionConflict means a version-stamped write lost to a concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
	ErrReferenced      = errors.New("referenced by other rows")
	// ErrStateChanged means a status-guarded update matched no row.
	ErrStateChanged = errors.New("row state changed")
)
