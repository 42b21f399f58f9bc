package role

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a role label is not one of the recognized roles.
var ErrUnknownRole = errors.New("role: unknown role")

// Role is the behavioral role an author holds within a session.
//
// The zero value Unknown stands for any label outside the recognized set.
// Every table in this package is indexed by Role, so adding a role means
// extending each table in the same change.
type Role uint8

const (
	Unknown Role = iota
	MainVictim
	AggressiveVictim
	NonAggressiveVictim
	Bully
	BullyAssistant
	AggressiveDefender
	NonAggressiveDefenderDirect
	NonAggressiveDefenderSupport
	PassiveBystander

	numRoles
)

// Bucket groups roles for node admission and edge synthesis.
type Bucket uint8

const (
	// BucketNone is used for roles that never become graph nodes.
	BucketNone Bucket = iota
	BucketVictim
	BucketBully
	BucketDefender
)

func (b Bucket) String() string {
	switch b {
	case BucketVictim:
		return "victim"
	case BucketBully:
		return "bully"
	case BucketDefender:
		return "defender"
	default:
		return "none"
	}
}

type roleInfo struct {
	name   string
	bucket Bucket
	layer  float64
}

var roles = [numRoles]roleInfo{
	Unknown:                      {name: "unknown", bucket: BucketNone},
	MainVictim:                   {name: "main_victim", bucket: BucketVictim, layer: 0.0},
	AggressiveVictim:             {name: "aggressive_victim", bucket: BucketVictim, layer: 0.5},
	NonAggressiveVictim:          {name: "non_aggressive_victim", bucket: BucketVictim, layer: 0.5},
	Bully:                        {name: "bully", bucket: BucketBully, layer: 1.0},
	BullyAssistant:               {name: "bully_assistant", bucket: BucketBully, layer: 1.0},
	AggressiveDefender:           {name: "aggressive_defender", bucket: BucketDefender, layer: -1.0},
	NonAggressiveDefenderDirect:  {name: "non_aggressive_defender:direct_to_the_bully", bucket: BucketDefender, layer: -1.0},
	NonAggressiveDefenderSupport: {name: "non_aggressive_defender:support_of_the_victim", bucket: BucketDefender, layer: -1.0},
	PassiveBystander:             {name: "passive_bystander", bucket: BucketNone},
}

var byName = func() map[string]Role {
	m := make(map[string]Role, numRoles)
	for r := MainVictim; r < numRoles; r++ {
		m[roles[r].name] = r
	}
	return m
}()

// All returns every recognized role in declaration order.
func All() []Role {
	out := make([]Role, 0, numRoles-1)
	for r := MainVictim; r < numRoles; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRole maps a wire label such as "bully_assistant" to its Role.
func ParseRole(s string) (Role, error) {
	r, ok := byName[s]
	if !ok {
		return Unknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r > Unknown && r < numRoles
}

func (r Role) String() string {
	if r >= numRoles {
		return roles[Unknown].name
	}
	return roles[r].name
}

// Bucket returns the node bucket of r. Bystanders and unknown roles are BucketNone.
func (r Role) Bucket() Bucket {
	if r >= numRoles {
		return BucketNone
	}
	return roles[r].bucket
}

// Layer is the vertical placement hint used when rendering a session graph.
// It carries no graph semantics.
func (r Role) Layer() float64 {
	if r >= numRoles {
		return 0
	}
	return roles[r].layer
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
