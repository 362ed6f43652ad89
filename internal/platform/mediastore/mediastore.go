package mediastore

import "context"

// Store persists product and generated images under caller-chosen unique
// filenames and exposes a public retrieval URL per file.
type Store interface {
	Save(ctx context.Context, filename string, data []byte) error
	Delete(ctx context.Context, filename string) error
	PublicURL(filename string) string
}
