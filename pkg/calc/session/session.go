package session

import (
	"encoding/json"
	"maps"
	"time"
)

// Version is the current session record format version.
// Increment when making breaking changes to the Session structure.
const Version = 1

// Session is the per-client calculator state.
type Session struct {
	Version int    `json:"version"`
	ID      string `json:"id"`

	// Expression is the stored expression; empty means none is set.
	Expression string `json:"expression,omitempty"`

	// Vars maps single-letter names to values.
	Vars map[string]int `json:"vars,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// New creates an empty session created at now.
func New(id string, now time.Time) *Session {
	now = now.UTC()
	return &Session{
		Version:    Version,
		ID:         id,
		Vars:       make(map[string]int),
		CreatedAt:  now,
		LastAccess: now,
	}
}

// HasExpression reports whether an expression is stored.
func (s *Session) HasExpression() bool {
	return s.Expression != ""
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Vars = maps.Clone(s.Vars)
	if c.Vars == nil {
		c.Vars = make(map[string]int)
	}
	return &c
}

// Touch sets LastAccess.
func (s *Session) Touch(now time.Time) {
	s.LastAccess = now.UTC()
}

// Marshal serializes a session to JSON.
func (s *Session) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal deserializes a session from JSON.
func Unmarshal(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if s.Vars == nil {
		s.Vars = make(map[string]int)
	}
	return &s, nil
}
