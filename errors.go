package revisor

import "errors"

var (
	// ErrVetoed is returned when a pre-event hook aborts an operation.
	ErrVetoed = errors.New("operation vetoed by hook")
	// ErrVersionNotFound is returned when a version id or number does not exist for a record.
	ErrVersionNotFound = errors.New("version not found for record")
	// ErrRecordNotFound is returned when a record does not exist in the targeted table.
	ErrRecordNotFound = errors.New("record not found")
	// ErrWrongContext is returned when a context-specific accessor is called on the wrong record kind.
	ErrWrongContext = errors.New("operation not available for this record context")
	// ErrEntityNotRegistered is returned when an operation names an unknown base entity.
	ErrEntityNotRegistered = errors.New("entity not registered")
	// ErrMissingKey is returned when a natural-key entity is created without an id.
	ErrMissingKey = errors.New("record id is required for natural-key entities")
	// ErrSoftDeleteDisabled is returned when restore is attempted on an entity without soft deletes.
	ErrSoftDeleteDisabled = errors.New("entity does not use soft deletes")
)
