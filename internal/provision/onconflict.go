package provision

import (
	"fmt"
	"strings"
)

// ConflictAction selects what InsertBatch does when a row collides
// with an existing one on the OnConflict.Keys columns.
type ConflictAction int

const (
	// Ignore skips colliding rows, keeping the existing row.
	Ignore ConflictAction = iota
	// Upsert overwrites every non-key column of the colliding row.
	Upsert
)

// OnConflict describes the `on_conflict` table option, parsed from a
// string of the form "ignore:col1,col2" or "upsert:col1,col2".
type OnConflict struct {
	Action ConflictAction
	Keys   []string
}

// ParseOnConflict parses the on_conflict option string. An empty
// string is not a valid input; callers pass nil for "no on_conflict
// configured" rather than calling this with "".
func ParseOnConflict(s string) (*OnConflict, error) {
	action, rest, found := strings.Cut(s, ":")
	if !found {
		return nil, fmt.Errorf("provision: malformed on_conflict option %q, want \"ignore:col1,col2\" or \"upsert:col1,col2\"", s)
	}

	keys := strings.Split(rest, ",")
	for i, k := range keys {
		keys[i] = strings.TrimSpace(k)
		if keys[i] == "" {
			return nil, fmt.Errorf("provision: on_conflict option %q has an empty column name", s)
		}
	}

	switch strings.ToLower(strings.TrimSpace(action)) {
	case "ignore":
		return &OnConflict{Action: Ignore, Keys: keys}, nil
	case "upsert":
		return &OnConflict{Action: Upsert, Keys: keys}, nil
	default:
		return nil, fmt.Errorf("provision: unknown on_conflict action %q, want \"ignore\" or \"upsert\"", action)
	}
}
