package schema

import "errors"

var (
	// ErrNotModel is returned when a declared type cannot be resolved as a domain model
	ErrNotModel = errors.New("type is not a domain model")

	// ErrNoPrimaryKey is returned by primary-key operations on a model without one
	ErrNoPrimaryKey = errors.New("model has no primary key")

	// ErrDuplicatePrimaryKey is returned when more than one field is marked primary
	ErrDuplicatePrimaryKey = errors.New("model declares more than one primary key")

	// ErrUnknownField is returned when a field name is not part of the model
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownRelation is returned when a relation name is not declared on the model
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrInvalidRelation is returned when a relation declaration cannot be interpreted
	ErrInvalidRelation = errors.New("invalid relation declaration")
)
