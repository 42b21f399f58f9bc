package store

import "github.com/OFFIS-RIT/motifs/pkg/common"

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements. A non-positive chunkSize means a single window.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// GroupComments splits comments into runs of the same unit, keeping the
// order within each unit.
func GroupComments(comments []common.Comment) map[int64][]common.Comment {
	out := make(map[int64][]common.Comment)
	for _, c := range comments {
		out[c.UnitID] = append(out[c.UnitID], c)
	}
	return out
}
