package guidesearch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChunkID derives the stable identifier for a chunk from its document name,
// 1-based page number, and 0-based chunk position within that page.
// Re-processing identical input bytes reproduces identical IDs, which is what
// makes rebuilds idempotent and re-embedding after a re-chunk detectable.
func ChunkID(document string, page, chunk int) string {
	return fmt.Sprintf("%s_page%d_chunk%d", document, page, chunk)
}

// NewBuildID generates a globally unique, time-sortable UUIDv7 naming one
// corpus build. Unlike chunk IDs it is intentionally fresh per build, so two
// builds of the same sources are distinguishable on disk.
func NewBuildID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUnix returns the current time as Unix seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
