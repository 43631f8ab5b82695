package dice

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownMap   = errors.New("unknown map")
	ErrNoAttack     = errors.New("no pending attack")
)

// IllegalMoveError rejects a command whose preconditions do not hold.
// The reason is safe to show to the acting user.
type IllegalMoveError struct {
	Reason string
	UserID string
	Args   []string
}

func (e *IllegalMoveError) Error() string {
	if len(e.Args) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s (%s)", e.Reason, strings.Join(e.Args, ", "))
}

func illegal(reason, userID string, args ...string) *IllegalMoveError {
	return &IllegalMoveError{Reason: reason, UserID: userID, Args: args}
}

// ConfigurationError means a table cannot be made available.
type ConfigurationError struct {
	Tag     string
	MapName string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.MapName != "" {
		return fmt.Sprintf("table %s (map %s): %v", e.Tag, e.MapName, e.Err)
	}
	return fmt.Sprintf("table %s: %v", e.Tag, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConsistencyWarning reports a divergence between cached and stored table
// state. It is reported, never returned to a command caller.
type ConsistencyWarning struct {
	Tag  string
	Diff string
}

func (e *ConsistencyWarning) Error() string {
	return fmt.Sprintf("table %s: cache and store diverged", e.Tag)
}
