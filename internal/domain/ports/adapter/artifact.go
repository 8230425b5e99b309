package adapter

import "context"

// ArtifactStore persists raw generation output and returns a stable URL.
// Used only when a backend returns binary data instead of a hosted reference.
type ArtifactStore interface {
	Store(ctx context.Context, data []byte, path string) (string, error)
}
