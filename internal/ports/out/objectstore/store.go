package objectstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no object exists at the requested path.
	ErrNotFound = errors.New("object not found")
)

// SignedUpload grants a client one direct upload to a path.
type SignedUpload struct {
	URL   string
	Token string
	Path  string
}

// Store abstracts the evidence object storage backend. The real backend is an
// external service; only this contract is depended on.
type Store interface {
	CreateSignedUploadURL(ctx context.Context, path string) (SignedUpload, error)
	Download(ctx context.Context, path string) ([]byte, error)
}
