package wigle

import (
	"context"
	"io"
	"time"
)

// Searcher performs one page request against the network search API.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

// Sink receives matching records as pages arrive.
type Sink interface {
	Append(ctx context.Context, records []Record) (int, error)
	Path() string
	Close() error
}

// SinkOpener opens the sink for a run's output path.
type SinkOpener func(path string) (Sink, error)

// RowCounter counts data rows in a written output file.
type RowCounter func(path string) (int, error)

// Pauser suspends the loop between pages.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// RunStore persists finished run metadata.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for integrity checks.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
