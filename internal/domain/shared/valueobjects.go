package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ExternalID is the human-facing student identifier (matricola).
// Mutable through rename, unique among active records.
type ExternalID string

// IsValid checks that the id is non-blank and has no inner whitespace.
func (e ExternalID) IsValid() bool {
	s := string(e)
	return s != "" && strings.TrimSpace(s) == s && !strings.ContainsAny(s, " \t\n")
}

// String returns the string representation.
func (e ExternalID) String() string {
	return string(e)
}

// NewExternalID trims and validates a raw identifier cell.
// Spreadsheet exports sometimes render numeric ids as "313385.0".
func NewExternalID(raw string) (ExternalID, error) {
	id := strings.TrimSpace(raw)
	id = strings.TrimSuffix(id, ".0")
	if id == "" {
		return "", ErrEmptyStudentID
	}
	e := ExternalID(id)
	if !e.IsValid() {
		return "", NewDomainError("identity", "Validate", ErrInvalidFormat, "invalid student id "+raw)
	}
	return e, nil
}

// InternalID is the opaque, stable record key assigned at enrollment.
type InternalID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the internal ID is a valid UUID.
func (i InternalID) IsValid() bool {
	return uuidRegex.MatchString(string(i))
}

// String returns the string representation.
func (i InternalID) String() string {
	return string(i)
}
