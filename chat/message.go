package chat

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message. It is a closed set: decoding an
// unknown role fails instead of silently passing an arbitrary string through.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// UnmarshalJSON rejects roles outside the closed set.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	role := Role(s)
	if !role.Valid() {
		return fmt.Errorf("unknown message role %q", s)
	}
	*r = role
	return nil
}

// Message is a single conversation entry. Insertion order is significant.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// State is the accumulated conversation state of one thread.
type State struct {
	Messages           []Message `json:"messages"`
	ProcessingComplete bool      `json:"processing_complete"`
}

// NewState returns the initial state for a fresh thread.
func NewState() State {
	return State{Messages: []Message{}}
}

// LastUserInput returns the content of the most recent user message, or "".
func (s State) LastUserInput() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}
