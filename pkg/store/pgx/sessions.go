package pgx

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/store"
)

const querySessionsSQL = `
WITH count_comments AS (
    SELECT
        unit_id,
        sum(is_cyberbullying::INTEGER) AS num_bullying_comments,
        count(*) AS num_comments
    FROM ` + schema + `.comments
    WHERE comment_content <> ''
    GROUP BY unit_id
)
SELECT
    sessions.unit_id,
    COALESCE(sessions.session_posted_at, to_timestamp(0)),
    sessions.owner_user_name,
    COALESCE(sessions.owner_comment, ''),
    sessions.session_likes,
    count_comments.num_bullying_comments,
    count_comments.num_comments,
    sessions.main_victim,
    sessions.topic_vector
FROM ` + schema + `.sessions
    INNER JOIN count_comments
    ON count_comments.unit_id = sessions.unit_id
WHERE sessions.main_victim IN ('OP', 'Participants')
    AND sessions.topic_vector IS NOT NULL
ORDER BY sessions.unit_id;
`

const queryCommentsSQL = `
SELECT
    unit_id,
    comment_id,
    comment_author,
    comment_created_at,
    COALESCE(comment_content, ''),
    is_cyberbullying,
    role,
    severity
FROM ` + schema + `.comments
ORDER BY unit_id, %s;
`

const queryTopicVectorSQL = `
SELECT topic_vector
FROM ` + schema + `.sessions
WHERE unit_id = $1 AND topic_vector IS NOT NULL;
`

const querySimilarSessionsSQL = `
SELECT unit_id, topic_vector <-> $2 AS distance
FROM ` + schema + `.sessions
WHERE unit_id <> $1 AND topic_vector IS NOT NULL
ORDER BY distance, unit_id
LIMIT $3;
`

// fromVector decodes a vector column back into topic counts.
func fromVector(v pgvector.Vector) []int {
	s := v.Slice()
	topics := make([]int, len(s))
	for i, f := range s {
		topics[i] = int(math.Round(float64(f)))
	}
	return topics
}

func commentOrder(shuffle bool) string {
	if shuffle {
		return "random()"
	}
	return "comment_created_at"
}

func (s *GraphDBStorage) QuerySessions(ctx context.Context) ([]common.Session, error) {
	rows, err := s.conn.Query(ctx, querySessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []common.Session
	for rows.Next() {
		var (
			sess       common.Session
			likes      *int32
			bullying   int64
			comments   int64
			mainVictim *string
			topics     pgvector.Vector
		)
		if err := rows.Scan(
			&sess.UnitID,
			&sess.PostedAt,
			&sess.OwnerUserName,
			&sess.OwnerComment,
			&likes,
			&bullying,
			&comments,
			&mainVictim,
			&topics,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if likes != nil {
			sess.NumLikes = int(*likes)
		}
		if mainVictim != nil {
			sess.MainVictim = *mainVictim
		}
		sess.NumBullyingComments = int(bullying)
		sess.NumComments = int(comments)
		sess.TopicVector = fromVector(topics)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debug("[Store][QuerySessions] Loaded sessions", "sessions", len(sessions))
	return sessions, nil
}

func (s *GraphDBStorage) QueryComments(ctx context.Context, shuffle bool) ([]common.Comment, error) {
	rows, err := s.conn.Query(ctx, fmt.Sprintf(queryCommentsSQL, commentOrder(shuffle)))
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []common.Comment
	for rows.Next() {
		var (
			c         common.Comment
			id        uuid.UUID
			createdAt *time.Time
			bullying  *bool
			severity  *float64
		)
		if err := rows.Scan(
			&c.UnitID,
			&id,
			&c.Author,
			&createdAt,
			&c.Content,
			&bullying,
			&c.Role,
			&severity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CommentID = id
		c.CreatedAt = createdAt
		if bullying != nil {
			c.IsCyberbullying = *bullying
		}
		if severity != nil {
			c.Severity = *severity
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	logger.Debug("[Store][QueryComments] Loaded comments", "comments", len(comments), "shuffle", shuffle)
	return comments, nil
}

func (s *GraphDBStorage) QuerySimilarSessions(ctx context.Context, unitID int64, limit int) ([]store.SimilarSession, error) {
	var target pgvector.Vector
	if err := s.conn.QueryRow(ctx, queryTopicVectorSQL, unitID).Scan(&target); err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("%w: topic vector of unit %d", store.ErrNotFound, unitID)
		}
		return nil, fmt.Errorf("failed to query topic vector of unit %d: %w", unitID, err)
	}

	rows, err := s.conn.Query(ctx, querySimilarSessionsSQL, unitID, target, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions similar to unit %d: %w", unitID, err)
	}
	defer rows.Close()

	var out []store.SimilarSession
	for rows.Next() {
		var sim store.SimilarSession
		if err := rows.Scan(&sim.UnitID, &sim.Distance); err != nil {
			return nil, err
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}
