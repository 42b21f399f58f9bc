package role

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidSeverity is returned when a severity lies outside [MinSeverity, MaxSeverity].
	ErrInvalidSeverity = errors.New("role: severity must be between 0.0 and 3.0 (inclusive)")

	// ErrNegativeTimeDelta is returned when two timestamps are too far out of order
	// for the log-scaled delta to be defined.
	ErrNegativeTimeDelta = errors.New("role: time delta out of range")
)

const (
	MinSeverity = 0.0
	MaxSeverity = 3.0
)

// Identity is the graph-node key of an event. The same author holding the
// same role within a session always maps to the same node.
type Identity struct {
	Author string `json:"author"`
	Role   Role   `json:"role"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s (%s)", id.Author, id.Role)
}

// Event is one author acting in one role within a session, usually derived
// from a single labeled comment.
type Event struct {
	UnitID     int64
	CommentID  uuid.UUID
	AuthorName string
	Role       Role
	Timestamp  *time.Time

	severity float64
}

// NewEvent creates an Event. It fails with ErrInvalidSeverity when severity
// is outside [0.0, 3.0].
func NewEvent(
	unitID int64,
	commentID uuid.UUID,
	authorName string,
	r Role,
	severity float64,
	timestamp *time.Time,
) (*Event, error) {
	e := &Event{
		UnitID:     unitID,
		CommentID:  commentID,
		AuthorName: authorName,
		Role:       r,
		Timestamp:  timestamp,
	}
	if err := e.SetSeverity(severity); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Event) Severity() float64 {
	return e.severity
}

func (e *Event) SetSeverity(value float64) error {
	if math.IsNaN(value) || value < MinSeverity || value > MaxSeverity {
		return fmt.Errorf("%w: got %v", ErrInvalidSeverity, value)
	}
	e.severity = value
	return nil
}

func (e *Event) Identity() Identity {
	return Identity{Author: e.AuthorName, Role: e.Role}
}

// TimeDelta returns ln(1 + seconds) elapsed from other to e.
// When either timestamp is missing the delta is 0.
func (e *Event) TimeDelta(other *Event) (float64, error) {
	if e.Timestamp == nil || other == nil || other.Timestamp == nil {
		return 0, nil
	}
	delta := e.Timestamp.Sub(*other.Timestamp).Seconds()
	if 1+delta <= 0 {
		return 0, fmt.Errorf("%w: delta is %v seconds", ErrNegativeTimeDelta, delta)
	}
	return math.Log1p(delta), nil
}

func (e *Event) String() string {
	return e.Identity().String()
}

// EdgePolicy decides whether actor may be connected to target while a
// session graph is synthesized.
type EdgePolicy func(actor, target *Event) bool

// PermitAll is the default EdgePolicy. It admits every edge.
func PermitAll(actor, target *Event) bool {
	return true
}

// WithinTimeDelta admits an edge only if actor reacted at most cutoff after
// target, measured like TimeDelta. Events without timestamps, or an actor
// older than its target, are admitted.
func WithinTimeDelta(cutoff float64) EdgePolicy {
	return func(actor, target *Event) bool {
		delta, err := actor.TimeDelta(target)
		if err != nil {
			return true
		}
		return delta <= cutoff
	}
}
