package errno

import (
	"errors"
)

var (
	// ErrNotFound indicates a row lookup by id or name matched nothing.
	ErrNotFound = errors.New("not found")

	// ErrImmutable indicates a write targeted a base-knowledge row.
	ErrImmutable = errors.New("base knowledge is immutable")

	// ErrConflict indicates a unique-name collision, an undismissed schedule
	// conflict, a similar-schedule rejection, or an active-environment race.
	ErrConflict = errors.New("conflict")

	// ErrBadInput indicates failed validation (time ordering, weekday range,
	// malformed strict-parse JSON, empty required fields).
	ErrBadInput = errors.New("bad input")

	// ErrUpstream indicates a ChatModel or plugin transport failure.
	ErrUpstream = errors.New("upstream failure")

	// ErrDependencyDeadlock indicates sequential task execution cannot make
	// progress because no pending agent has all dependencies completed.
	ErrDependencyDeadlock = errors.New("dependency deadlock")

	// ErrCancelled indicates the per-turn deadline fired or the caller
	// cancelled the context.
	ErrCancelled = errors.New("cancelled")

	// ErrEventAlreadyDone indicates an event handle was requested for an
	// event already in a terminal status.
	ErrEventAlreadyDone = errors.New("event already done")
)
