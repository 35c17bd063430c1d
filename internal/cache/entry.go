package cache

import "time"

// Bucket is one semantic category of cached ledger values. Keys are
// unique within a bucket.
type Bucket string

const (
	BucketDraws   Bucket = "draws"
	BucketWinners Bucket = "winners"
	BucketPrizes  Bucket = "prizes"
	BucketScalars Bucket = "scalars"
)

// Entry is a single cached value. Entries are immutable once stored: a
// refresh replaces the whole entry under the store lock, never mutates
// it in place. An expired entry is logically stale but is retained so
// it can be served explicitly when a refresh attempt fails.
type Entry struct {
	Value     any
	FetchedAt time.Time
	ExpiresAt time.Time
}

// IsExpired checks whether the entry is expired at the given time.
func (e Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
