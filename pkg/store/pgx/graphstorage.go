// Package pgx implements store.Storage on PostgreSQL. Topic vectors live in a
// pgvector column, so the pool must register the pgvector types on connect.
package pgx

import (
	"context"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/OFFIS-RIT/motifs/pkg/store"
)

const (
	schema           = "cyberbullying_motifs"
	defaultChunkSize = 500
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// NewPool connects a pool that registers the pgvector types on every new
// connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// GraphDBStorage persists session graphs and motifs. Every insert runs in
// one transaction per chunk, so a failing chunk leaves earlier chunks
// committed.
type GraphDBStorage struct {
	conn      pgxIConn
	chunkSize int
}

var _ store.Storage = (*GraphDBStorage)(nil)

type GraphDBStorageOption func(*GraphDBStorage)

// WithChunkSize sets the number of rows written per transaction.
func WithChunkSize(n int) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// pool, connection or transaction.
func NewGraphDBStorageWithConnection(conn pgxIConn, opts ...GraphDBStorageOption) *GraphDBStorage {
	s := &GraphDBStorage{
		conn:      conn,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// inChunks runs fn for every chunk of total rows inside its own transaction.
func (s *GraphDBStorage) inChunks(ctx context.Context, total int, fn func(tx pgxv5.Tx, start, end int) error) error {
	return store.ChunkRange(total, s.chunkSize, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		if err := fn(tx, start, end); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}
