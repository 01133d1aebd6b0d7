// Package domain holds typed identifiers shared across bounded contexts.
package domain

import (
	"github.com/google/uuid"

	dErrors "proptoken/pkg/domain-errors"
)

// SubmissionID identifies an asset submission and its verification run.
type SubmissionID uuid.UUID

// EventID identifies an activity feed entry.
type EventID uuid.UUID

func NewSubmissionID() SubmissionID { return SubmissionID(uuid.New()) }

func NewEventID() EventID { return EventID(uuid.New()) }

func (id SubmissionID) String() string { return uuid.UUID(id).String() }
func (id SubmissionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id EventID) String() string { return uuid.UUID(id).String() }
func (id EventID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the canonical UUID form so IDs encode as JSON strings.
func (id SubmissionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SubmissionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubmissionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseSubmissionID validates input at trust boundaries. Empty, malformed and
// nil UUIDs are rejected.
func ParseSubmissionID(s string) (SubmissionID, error) {
	u, err := parseUUID(s, "submission ID")
	return SubmissionID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event ID")
	return EventID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
