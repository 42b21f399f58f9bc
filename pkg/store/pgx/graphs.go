package pgx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/session"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

const upsertSessionGraphSQL = `
INSERT INTO ` + schema + `.session_digraphs (
    unit_id,
    serialized_graph,
    is_true_graph,
    num_nodes,
    num_edges,
    num_bullies,
    num_victims,
    num_non_agg_victims,
    num_agg_victims,
    num_defenders,
    num_non_agg_defenders,
    num_agg_defenders,
    main_victim_in_deg,
    main_victim_weighted_in_deg,
    main_victim_out_deg,
    main_victim_weighted_out_deg,
    victim_avg_in_deg,
    victim_avg_weighted_in_deg,
    victim_avg_out_deg,
    victim_avg_weighted_out_deg,
    victim_score,
    victim_score_weighted,
    bully_avg_in_deg,
    bully_avg_weighted_in_deg,
    bully_avg_out_deg,
    bully_avg_weighted_out_deg,
    bully_score,
    bully_score_weighted,
    main_victim_score,
    main_victim_score_weighted
) VALUES (
    $1, $2::jsonb, $3, $4, $5, $6, $7, $8, $9, $10,
    $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
    $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
)
ON CONFLICT (unit_id, is_true_graph) DO UPDATE SET
    serialized_graph = EXCLUDED.serialized_graph,
    num_nodes = EXCLUDED.num_nodes,
    num_edges = EXCLUDED.num_edges,
    num_bullies = EXCLUDED.num_bullies,
    num_victims = EXCLUDED.num_victims,
    num_non_agg_victims = EXCLUDED.num_non_agg_victims,
    num_agg_victims = EXCLUDED.num_agg_victims,
    num_defenders = EXCLUDED.num_defenders,
    num_non_agg_defenders = EXCLUDED.num_non_agg_defenders,
    num_agg_defenders = EXCLUDED.num_agg_defenders,
    main_victim_in_deg = EXCLUDED.main_victim_in_deg,
    main_victim_weighted_in_deg = EXCLUDED.main_victim_weighted_in_deg,
    main_victim_out_deg = EXCLUDED.main_victim_out_deg,
    main_victim_weighted_out_deg = EXCLUDED.main_victim_weighted_out_deg,
    victim_avg_in_deg = EXCLUDED.victim_avg_in_deg,
    victim_avg_weighted_in_deg = EXCLUDED.victim_avg_weighted_in_deg,
    victim_avg_out_deg = EXCLUDED.victim_avg_out_deg,
    victim_avg_weighted_out_deg = EXCLUDED.victim_avg_weighted_out_deg,
    victim_score = EXCLUDED.victim_score,
    victim_score_weighted = EXCLUDED.victim_score_weighted,
    bully_avg_in_deg = EXCLUDED.bully_avg_in_deg,
    bully_avg_weighted_in_deg = EXCLUDED.bully_avg_weighted_in_deg,
    bully_avg_out_deg = EXCLUDED.bully_avg_out_deg,
    bully_avg_weighted_out_deg = EXCLUDED.bully_avg_weighted_out_deg,
    bully_score = EXCLUDED.bully_score,
    bully_score_weighted = EXCLUDED.bully_score_weighted,
    main_victim_score = EXCLUDED.main_victim_score,
    main_victim_score_weighted = EXCLUDED.main_victim_score_weighted;
`

const querySessionGraphsSQL = `
SELECT serialized_graph
FROM ` + schema + `.session_digraphs
WHERE is_true_graph OR NOT $1
ORDER BY unit_id, is_true_graph DESC;
`

const querySessionGraphSQL = `
SELECT serialized_graph
FROM ` + schema + `.session_digraphs
WHERE unit_id = $1 AND is_true_graph = $2;
`

func isNoRows(err error) bool {
	return errors.Is(err, pgxv5.ErrNoRows)
}

// sessionGraphArgs returns the insert arguments of g in column order.
func sessionGraphArgs(g *session.Graph) ([]any, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize graph of unit %d: %w", g.UnitID, err)
	}
	sum := g.Summarize()
	return []any{
		g.UnitID,
		string(util.SanitizeJSONB(data)),
		g.IsTrueGraph,
		sum.NumNodes,
		sum.NumEdges,
		sum.NumBullies,
		sum.NumVictims,
		sum.NumNonAggVictims,
		sum.NumAggVictims,
		sum.NumDefenders,
		sum.NumNonAggDefenders,
		sum.NumAggDefenders,
		sum.MainVictimInDeg,
		sum.MainVictimWeightedInDeg,
		sum.MainVictimOutDeg,
		sum.MainVictimWeightedOutDeg,
		sum.VictimAvgInDeg,
		sum.VictimAvgWeightedInDeg,
		sum.VictimAvgOutDeg,
		sum.VictimAvgWeightedOutDeg,
		sum.VictimScore,
		sum.VictimScoreWeighted,
		sum.BullyAvgInDeg,
		sum.BullyAvgWeightedInDeg,
		sum.BullyAvgOutDeg,
		sum.BullyAvgWeightedOutDeg,
		sum.BullyScore,
		sum.BullyScoreWeighted,
		sum.MainVictimScore,
		sum.MainVictimScoreWeighted,
	}, nil
}

// InsertSessionGraphs upserts graphs with their summary features. A unit keeps
// one true and one shuffled graph.
func (s *GraphDBStorage) InsertSessionGraphs(ctx context.Context, graphs []*session.Graph) error {
	if len(graphs) == 0 {
		return nil
	}

	logger.Debug("[Store][InsertSessionGraphs] Bulk upserting session graphs", "graphs", len(graphs))

	err := s.inChunks(ctx, len(graphs), func(tx pgxv5.Tx, start, end int) error {
		batch := &pgxv5.Batch{}
		for _, g := range graphs[start:end] {
			args, err := sessionGraphArgs(g)
			if err != nil {
				return err
			}
			batch.Queue(upsertSessionGraphSQL, args...)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to insert session graphs: %w", err)
	}

	logger.Debug("[Store][InsertSessionGraphs] Bulk upsert completed", "graphs", len(graphs))
	return nil
}

func decodeSessionGraph(data []byte) (*session.Graph, error) {
	g := &session.Graph{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("failed to decode session graph: %w", err)
	}
	return g, nil
}

func (s *GraphDBStorage) QuerySessionGraphs(ctx context.Context, trueOnly bool) ([]*session.Graph, error) {
	rows, err := s.conn.Query(ctx, querySessionGraphsSQL, trueOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query session graphs: %w", err)
	}
	defer rows.Close()

	var graphs []*session.Graph
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		g, err := decodeSessionGraph(data)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debug("[Store][QuerySessionGraphs] Loaded session graphs", "graphs", len(graphs), "true_only", trueOnly)
	return graphs, nil
}

func (s *GraphDBStorage) QuerySessionGraph(ctx context.Context, unitID int64, isTrue bool) (*session.Graph, error) {
	var data []byte
	if err := s.conn.QueryRow(ctx, querySessionGraphSQL, unitID, isTrue).Scan(&data); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: graph of unit %d", store.ErrNotFound, unitID)
		}
		return nil, fmt.Errorf("failed to query graph of unit %d: %w", unitID, err)
	}
	return decodeSessionGraph(data)
}
