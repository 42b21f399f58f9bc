// Package snapshot records the growth of session graphs as Graphviz files,
// one file per builder step, on disk or in an S3 bucket.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/motifs/internal/storage"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

// FileName names the snapshot of g at step.
func FileName(g *session.Graph, step int) string {
	kind := "graph"
	if !g.IsTrueGraph {
		kind = "shuffled_graph"
	}
	return fmt.Sprintf("%d_%s_step_%05d.dot", g.UnitID, kind, step)
}

// Dir writes snapshots into a local directory.
type Dir struct {
	dir string
}

var _ session.Snapshotter = (*Dir)(nil)

func NewDir(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Dir{dir: dir}, nil
}

func (d *Dir) Snapshot(g *session.Graph, step int) error {
	data, err := Render(g)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, FileName(g, step)), data, 0o644)
}

// Bucket uploads snapshots below a key prefix. Uploads use the context given
// at construction since the builder has none.
type Bucket struct {
	ctx    context.Context
	bucket *storage.Bucket
	prefix string
}

var _ session.Snapshotter = (*Bucket)(nil)

func NewBucket(ctx context.Context, bucket *storage.Bucket, prefix string) *Bucket {
	return &Bucket{ctx: ctx, bucket: bucket, prefix: prefix}
}

// Key returns the object key of the snapshot of g at step.
func (b *Bucket) Key(g *session.Graph, step int) string {
	return path.Join(b.prefix, fmt.Sprint(g.UnitID), FileName(g, step))
}

func (b *Bucket) Snapshot(g *session.Graph, step int) error {
	data, err := Render(g)
	if err != nil {
		return err
	}
	return b.bucket.PutFile(b.ctx, b.Key(g, step), bytes.NewReader(data))
}

// Clear removes every snapshot stored below the prefix.
func (b *Bucket) Clear() error {
	prefix := strings.TrimSuffix(b.prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return b.bucket.DeleteFolder(b.ctx, prefix)
}
