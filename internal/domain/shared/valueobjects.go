package shared

import (
	"regexp"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique player identifier. The game backend issues
// opaque hex ids, so the only local rule is non-emptiness.
type UserID string

// IsValid checks that the user id is non-empty.
func (u UserID) IsValid() bool {
	return u != ""
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// RoomID identifies a room by its world coordinates, e.g. "W12N34" or "E0S7".
type RoomID string

// Regular expression for valid room name format.
var roomIDRegex = regexp.MustCompile(`^[WE]\d+[NS]\d+$`)

// IsValid checks the room name against the world coordinate format.
func (r RoomID) IsValid() bool {
	return roomIDRegex.MatchString(string(r))
}

// String returns the string representation.
func (r RoomID) String() string {
	return string(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// Time helpers
// ═══════════════════════════════════════════════════════════════════════════

// Millis converts a wall-clock time to milliseconds since the Unix epoch.
// All bucket arithmetic operates on this representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds back to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
