package snapshot

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/motifs/internal/storage"
	"github.com/OFFIS-RIT/motifs/pkg/common"
	"github.com/OFFIS-RIT/motifs/pkg/role"
	"github.com/OFFIS-RIT/motifs/pkg/session"
)

func testSession() common.Session {
	return common.Session{
		UnitID:        17,
		PostedAt:      time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC),
		OwnerUserName: "owner name",
	}
}

func testEvents(t *testing.T) []*role.Event {
	t.Helper()
	var events []*role.Event
	for _, e := range []struct {
		name string
		r    role.Role
	}{
		{"b1", role.Bully},
		{"d1", role.AggressiveDefender},
	} {
		ev, err := role.NewEvent(17, uuid.New(), e.name, e.r, 1.5, nil)
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestRender(t *testing.T) {
	g, err := session.Build(testSession(), testEvents(t), true)
	require.NoError(t, err)

	out, err := Render(g)
	require.NoError(t, err)
	dot := string(out)
	require.Contains(t, dot, "digraph unit_17")
	require.Contains(t, dot, "n0")
	require.Contains(t, dot, "owner name")
	require.Contains(t, dot, "lightgreen")
	require.Contains(t, dot, "n1 -> n0")
	require.Contains(t, dot, "bully->victim")
	require.Equal(t, g.Size(), strings.Count(dot, " -> "))
}

func TestFileName(t *testing.T) {
	g := session.New(testSession(), true)
	require.Equal(t, "17_graph_step_00003.dot", FileName(g, 3))
	g = session.New(testSession(), false)
	require.Equal(t, "17_shuffled_graph_step_00012.dot", FileName(g, 12))
}

func TestDirSnapshotsEveryStep(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	snap, err := NewDir(dir)
	require.NoError(t, err)

	_, err = session.Build(testSession(), testEvents(t), true, session.WithSnapshotter(snap))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	// main victim, bully, bully edge, defender, defender edges
	require.GreaterOrEqual(t, len(entries), 5)
	require.Equal(t, "17_graph_step_00000.dot", entries[0].Name())

	first, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.NotContains(t, string(first), "->")
}

type memObjects struct {
	puts    map[string]string
	deleted []string
}

func (m *memObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.puts[*in.Key] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (m *memObjects) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k := range m.puts {
		if strings.HasPrefix(k, *in.Prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
		}
	}
	return out, nil
}

func (m *memObjects) DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, o := range in.Delete.Objects {
		m.deleted = append(m.deleted, *o.Key)
		delete(m.puts, *o.Key)
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestBucketSnapshots(t *testing.T) {
	mem := &memObjects{puts: map[string]string{}}
	bucket, err := storage.NewBucket(mem, "graphs")
	require.NoError(t, err)
	snap := NewBucket(context.Background(), bucket, "run-1")

	g, err := session.Build(testSession(), testEvents(t), false, session.WithSnapshotter(snap))
	require.NoError(t, err)

	key := snap.Key(g, 0)
	require.Equal(t, "run-1/17/17_shuffled_graph_step_00000.dot", key)
	require.Contains(t, mem.puts, key)
	require.Contains(t, mem.puts[key], "digraph")

	uploaded := len(mem.puts)
	require.NoError(t, snap.Clear())
	require.Len(t, mem.deleted, uploaded)
	require.Empty(t, mem.puts)
}
