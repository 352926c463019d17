package session

import (
	"fmt"
	"strings"
)

// IsolationLevel describes the concurrency-control strictness requested for
// a transaction.
//
// The zero value LevelUnspecified is distinguished: a session constructed
// with it never starts a transaction of its own, while an explicit begin at
// LevelUnspecified asks the provider for its default level.
type IsolationLevel int

const (
	// LevelUnspecified means "no isolation preference".
	LevelUnspecified IsolationLevel = iota
	LevelReadUncommitted
	LevelReadCommitted
	LevelRepeatableRead
	LevelSerializable
)

// String returns the SQL name of the level for logs and error messages.
func (l IsolationLevel) String() string {
	switch l {
	case LevelUnspecified:
		return "unspecified"
	case LevelReadUncommitted:
		return "read uncommitted"
	case LevelReadCommitted:
		return "read committed"
	case LevelRepeatableRead:
		return "repeatable read"
	case LevelSerializable:
		return "serializable"
	default:
		return fmt.Sprintf("isolation(%d)", int(l))
	}
}

// ParseIsolation maps a textual isolation level, as found in configuration
// files, to an IsolationLevel. Matching is case-insensitive and accepts both
// "read committed" and "read_committed" forms. An empty string parses to
// LevelUnspecified.
func ParseIsolation(s string) (IsolationLevel, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")) {
	case "", "unspecified", "default":
		return LevelUnspecified, nil
	case "read uncommitted":
		return LevelReadUncommitted, nil
	case "read committed":
		return LevelReadCommitted, nil
	case "repeatable read":
		return LevelRepeatableRead, nil
	case "serializable":
		return LevelSerializable, nil
	default:
		return LevelUnspecified, fmt.Errorf("%w: unknown isolation level %q", ErrInvalidArgument, s)
	}
}
