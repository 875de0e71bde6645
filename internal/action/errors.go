package action

import "errors"

var (
	// ErrUnknownCategory means the category is outside the closed set.
	ErrUnknownCategory = errors.New("unknown action category")

	// ErrNotRegistered means no action with that name exists.
	ErrNotRegistered = errors.New("action not registered")

	// ErrPermissionDenied means the domain's trust level does not
	// unlock the action's category.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidParams means the params failed validation before
	// anything ran.
	ErrInvalidParams = errors.New("invalid action params")

	// ErrNotReversible means rollback was requested for an action that
	// declares no undo.
	ErrNotReversible = errors.New("action is not reversible")
)
