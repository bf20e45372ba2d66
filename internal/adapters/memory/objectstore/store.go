package objectstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/turnotrack/shift-ops-api/internal/ports/out/objectstore"
)

// Store is an in-memory implementation of objectstore.Store, used for dev and
// tests. Signed URLs are synthetic; Upload stands in for the client's direct
// upload against the real backend.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

func NewStore() *Store {
	return &Store{
		objects: make(map[string][]byte),
		baseURL: "mem://uploads/",
	}
}

func (s *Store) CreateSignedUploadURL(ctx context.Context, path string) (objectstore.SignedUpload, error) {
	_ = ctx
	return objectstore.SignedUpload{
		URL:   s.baseURL + path,
		Token: uuid.NewString(),
		Path:  path,
	}, nil
}

func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Upload places object bytes at a path, simulating the client-side upload.
func (s *Store) Upload(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = append([]byte(nil), data...)
}
