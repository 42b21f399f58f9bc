package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/flavor"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/motif"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

const insertPlainMotifsSQL = `
INSERT INTO ` + schema + `.plain_motifs (
    plain_motif_id, unit_id, size, iso_class, count, motif_hash, serialized_motif
)
SELECT id::uuid, unit_id, size, iso_class, cnt, hash, doc::jsonb
FROM unnest($1::text[], $2::bigint[], $3::int[], $4::int[], $5::int[], $6::text[], $7::text[])
    AS t(id, unit_id, size, iso_class, cnt, hash, doc)
ON CONFLICT (plain_motif_id) DO NOTHING;
`

const insertFlavoredMotifsSQL = `
INSERT INTO ` + schema + `.flavored_motifs (
    flavored_motif_id, plain_motif_id, node_flavor, edge_flavor, motif_hash, serialized_motif
)
SELECT id::uuid, plain_id::uuid, node_flavor, edge_flavor, hash, doc::jsonb
FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[])
    AS t(id, plain_id, node_flavor, edge_flavor, hash, doc)
ON CONFLICT (flavored_motif_id) DO NOTHING;
`

const queryPlainMotifsByHashSQL = `
SELECT serialized_motif
FROM ` + schema + `.plain_motifs
WHERE motif_hash = $1
ORDER BY unit_id, size, iso_class;
`

const queryFlavoredMotifsByHashSQL = `
SELECT serialized_motif
FROM ` + schema + `.flavored_motifs
WHERE motif_hash = $1
ORDER BY node_flavor, edge_flavor, plain_motif_id;
`

type plainMotifColumns struct {
	ids, hashes, docs         []string
	unitIDs                   []int64
	sizes, isoClasses, counts []int32
}

func newPlainMotifColumns(motifs []*motif.PlainMotif) (*plainMotifColumns, error) {
	c := &plainMotifColumns{}
	for _, m := range motifs {
		doc, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize motif %s: %w", m.ID, err)
		}
		c.ids = append(c.ids, m.ID.String())
		c.unitIDs = append(c.unitIDs, m.UnitID)
		c.sizes = append(c.sizes, int32(m.Size))
		c.isoClasses = append(c.isoClasses, int32(m.IsoClass))
		c.counts = append(c.counts, int32(m.Count))
		c.hashes = append(c.hashes, m.Hash)
		c.docs = append(c.docs, string(util.SanitizeJSONB(doc)))
	}
	return c, nil
}

type flavoredMotifColumns struct {
	ids, plainIDs, nodeFlavors, edgeFlavors, hashes, docs []string
}

func newFlavoredMotifColumns(motifs []*flavor.FlavoredMotif) (*flavoredMotifColumns, error) {
	c := &flavoredMotifColumns{}
	for _, m := range motifs {
		doc, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize flavored motif %s: %w", m.ID, err)
		}
		c.ids = append(c.ids, m.ID.String())
		c.plainIDs = append(c.plainIDs, m.PlainMotifID.String())
		c.nodeFlavors = append(c.nodeFlavors, string(m.NodeFlavor))
		c.edgeFlavors = append(c.edgeFlavors, string(m.EdgeFlavor))
		c.hashes = append(c.hashes, m.Hash)
		c.docs = append(c.docs, string(util.SanitizeJSONB(doc)))
	}
	return c, nil
}

func (s *GraphDBStorage) InsertPlainMotifs(ctx context.Context, motifs []*motif.PlainMotif) error {
	if len(motifs) == 0 {
		return nil
	}

	logger.Debug("[Store][InsertPlainMotifs] Bulk inserting plain motifs", "motifs", len(motifs))

	err := s.inChunks(ctx, len(motifs), func(tx pgxv5.Tx, start, end int) error {
		c, err := newPlainMotifColumns(motifs[start:end])
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertPlainMotifsSQL,
			c.ids, c.unitIDs, c.sizes, c.isoClasses, c.counts, c.hashes, c.docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert plain motifs: %w", err)
	}
	return nil
}

// InsertFlavoredMotifs stores flavored motifs. Their plain motifs must have
// been inserted before.
func (s *GraphDBStorage) InsertFlavoredMotifs(ctx context.Context, motifs []*flavor.FlavoredMotif) error {
	if len(motifs) == 0 {
		return nil
	}

	logger.Debug("[Store][InsertFlavoredMotifs] Bulk inserting flavored motifs", "motifs", len(motifs))

	err := s.inChunks(ctx, len(motifs), func(tx pgxv5.Tx, start, end int) error {
		c, err := newFlavoredMotifColumns(motifs[start:end])
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertFlavoredMotifsSQL,
			c.ids, c.plainIDs, c.nodeFlavors, c.edgeFlavors, c.hashes, c.docs)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert flavored motifs: %w", err)
	}
	return nil
}

func collectDocs[T any](rows pgxv5.Rows) ([]*T, error) {
	defer rows.Close()
	var out []*T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v := new(T)
		if err := json.Unmarshal(data, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// QueryMotifsByHash returns every plain and flavored motif with the given
// fingerprint.
func (s *GraphDBStorage) QueryMotifsByHash(ctx context.Context, hash string) (*store.MotifMatches, error) {
	rows, err := s.conn.Query(ctx, queryPlainMotifsByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query plain motifs: %w", err)
	}
	plain, err := collectDocs[motif.PlainMotif](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plain motifs: %w", err)
	}

	rows, err = s.conn.Query(ctx, queryFlavoredMotifsByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query flavored motifs: %w", err)
	}
	flavored, err := collectDocs[flavor.FlavoredMotif](rows)
	if err != nil {
		return nil, fmt.Errorf("failed to decode flavored motifs: %w", err)
	}

	return &store.MotifMatches{Plain: plain, Flavored: flavored}, nil
}
