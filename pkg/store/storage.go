// Package store defines the persistence boundary of the motif pipeline.
package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

var ErrNotFound = errors.New("store: not found")

// SimilarSession is a session ranked by the distance of its topic vector.
type SimilarSession struct {
	UnitID   int64   `json:"unit_id"`
	Distance float64 `json:"distance"`
}

// MotifMatches holds every stored motif that shares one fingerprint.
type MotifMatches struct {
	Plain    []*motif.PlainMotif     `json:"plain_motifs"`
	Flavored []*flavor.FlavoredMotif `json:"flavored_motifs"`
}

// Storage reads the labeled sessions and persists what is derived from them.
type Storage interface {
	// QuerySessions returns the sessions that have comments, a known main
	// victim kind and a topic vector.
	QuerySessions(ctx context.Context) ([]common.Session, error)
	// QueryComments returns all comments grouped by unit. Within a unit they
	// are ordered by creation time, or randomly when shuffle is set.
	QueryComments(ctx context.Context, shuffle bool) ([]common.Comment, error)

	InsertSessionGraphs(ctx context.Context, graphs []*session.Graph) error
	QuerySessionGraphs(ctx context.Context, trueOnly bool) ([]*session.Graph, error)
	QuerySessionGraph(ctx context.Context, unitID int64, isTrue bool) (*session.Graph, error)
	QuerySimilarSessions(ctx context.Context, unitID int64, limit int) ([]SimilarSession, error)

	InsertPlainMotifs(ctx context.Context, motifs []*motif.PlainMotif) error
	InsertFlavoredMotifs(ctx context.Context, motifs []*flavor.FlavoredMotif) error
	QueryMotifsByHash(ctx context.Context, hash string) (*MotifMatches, error)
}
