// Package types defines the shared types used across all Praxis packages.
//
// These types form the lingua franca between the gateway, the scope resolver,
// the chat service, and the vendor providers. They are intentionally minimal —
// each package defines its own domain types, but cross-cutting data structures
// live here to avoid circular imports.
package types

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser marks a turn authored by the student.
	RoleUser Role = "user"

	// RoleAssistant marks a turn authored by the tutoring assistant.
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a recognised conversation role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is a single conversation exchange entry. History is an ordered slice
// of turns in strict chronological order.
type Turn struct {
	// Role is who authored the turn.
	Role Role `json:"role"`

	// Text is the turn content.
	Text string `json:"text"`
}

// Scope is the set of course names and topic phrases a student is permitted
// to receive answers about. It is derived from the enrollment vendor on every
// session start and never persisted.
type Scope struct {
	// Courses are the names of the student's actively enrolled courses.
	// Guaranteed non-empty by the resolver; an empty course list is an error,
	// not an empty scope.
	Courses []string

	// Phrases is the deduplicated bag of allowed phrase strings: course names,
	// curriculum topics, and expanded domain synonyms. Order is deterministic
	// (insertion order during the enrollment walk).
	Phrases []string
}

// Contains reports whether phrase is in the allowed phrase bag. Comparison is
// exact; callers normalise case before lookup.
func (s Scope) Contains(phrase string) bool {
	for _, p := range s.Phrases {
		if p == phrase {
			return true
		}
	}
	return false
}

// Audio is a synthesized speech payload attached to an assistant reply.
type Audio struct {
	// Data is the raw encoded audio.
	Data []byte

	// MimeType describes the encoding (e.g., "audio/mpeg", "audio/L16").
	MimeType string
}
