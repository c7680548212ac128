package artifact

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound means no version of the named artifact exists yet. The pipeline
// treats this as a valid cold start, not a failure.
var ErrNotFound = errors.New("artifact: no version found")

// Version identifies one immutable snapshot of a named artifact.
type Version struct {
	Name      string            `json:"name"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata"`
}

// Store is a versioned named-blob store. Uploads never mutate prior versions,
// so every persisted state remains individually recoverable.
type Store interface {
	// UseLatest resolves the newest version of name, or ErrNotFound.
	UseLatest(ctx context.Context, name string) (*Version, error)
	// Download returns the payload of a resolved version.
	Download(ctx context.Context, v *Version) ([]byte, error)
	// Upload writes data as a new version of name and returns it.
	Upload(ctx context.Context, name string, data []byte, metadata map[string]string) (*Version, error)
}
