package domain

import "errors"

// Error taxonomy for tracker operations. VersionConflict is transient
// and absorbed by the action processor's bounded retry; Contention is
// the only error a caller should retry itself. Everything else is
// permanent for the given request.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrVersionConflict   = errors.New("version conflict")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrTerminal          = errors.New("entity is in a terminal state")
	ErrInvalidPriority   = errors.New("invalid priority")
	ErrUnknownKind       = errors.New("unknown entity kind")
	ErrContention        = errors.New("sustained contention, retry later")
)
