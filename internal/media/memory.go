package media

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryHost keeps uploads in process memory. Used for local runs and tests.
type MemoryHost struct {
	mutex   sync.Mutex
	objects map[string][]byte
}

// NewMemoryHost constructs an empty MemoryHost.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{objects: make(map[string][]byte)}
}

func (host *MemoryHost) Upload(ctx context.Context, upload Upload) (Asset, error) {
	if upload.Body == nil || upload.Size == 0 {
		return Asset{}, ErrEmptyUpload
	}
	if _, err := upload.Body.Seek(0, io.SeekStart); err != nil {
		return Asset{}, fmt.Errorf("media.memory.upload: %w", err)
	}
	content, err := io.ReadAll(upload.Body)
	if err != nil {
		return Asset{}, fmt.Errorf("media.memory.upload: %w", err)
	}
	publicID := fmt.Sprintf("%s/%s%s", upload.Kind, uuid.NewString(), extensionFor(upload))
	host.mutex.Lock()
	defer host.mutex.Unlock()
	host.objects[publicID] = content
	return Asset{URL: "memory://" + publicID, PublicID: publicID, Kind: upload.Kind}, nil
}

func (host *MemoryHost) Destroy(ctx context.Context, publicID string, kind Kind) error {
	if strings.TrimSpace(publicID) == "" {
		return ErrEmptyPublicID
	}
	host.mutex.Lock()
	defer host.mutex.Unlock()
	delete(host.objects, publicID)
	return nil
}

func (host *MemoryHost) Ping(ctx context.Context) error {
	return nil
}

// Has reports whether publicID is stored.
func (host *MemoryHost) Has(publicID string) bool {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	_, ok := host.objects[publicID]
	return ok
}

// Len returns the number of stored objects.
func (host *MemoryHost) Len() int {
	host.mutex.Lock()
	defer host.mutex.Unlock()
	return len(host.objects)
}
