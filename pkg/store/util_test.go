package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OFFIS-RIT/motifs/pkg/common"
)

func TestChunkRange(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      [][2]int
	}{
		{"empty", 0, 10, nil},
		{"single chunk", 3, 10, [][2]int{{0, 3}}},
		{"exact", 4, 2, [][2]int{{0, 2}, {2, 4}}},
		{"remainder", 5, 2, [][2]int{{0, 2}, {2, 4}, {4, 5}}},
		{"no chunk size", 5, 0, [][2]int{{0, 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][2]int
			err := ChunkRange(tt.total, tt.chunkSize, func(start, end int) error {
				got = append(got, [2]int{start, end})
				return nil
			})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestChunkRangeStopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := ChunkRange(10, 3, func(start, end int) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestGroupComments(t *testing.T) {
	comments := []common.Comment{
		{UnitID: 1, Author: "a"},
		{UnitID: 2, Author: "b"},
		{UnitID: 1, Author: "c"},
	}
	grouped := GroupComments(comments)
	require.Len(t, grouped, 2)
	require.Equal(t, "a", grouped[1][0].Author)
	require.Equal(t, "c", grouped[1][1].Author)
	require.Equal(t, "b", grouped[2][0].Author)
}
