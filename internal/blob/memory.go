package blob

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

type memObject struct {
	info Info
	data []byte
}

// MemoryStore keeps objects in process memory. Intended for tests.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memObject
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore { return &MemoryStore{objs: make(map[string]memObject)} }

// Driver implements Store.
func (s *MemoryStore) Driver() Driver { return DriverMemory }

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, eris.Wrapf(err, "blob: read %s", key)
	}
	info := Info{Key: key, Size: int64(len(b)), LastModified: time.Now().UTC()}
	s.mu.Lock()
	s.objs[key] = memObject{info: info, data: b}
	s.mu.Unlock()
	return info, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "blob: get %s", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Head implements Store.
func (s *MemoryStore) Head(_ context.Context, key string) (Info, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, eris.Wrapf(ErrNotFound, "blob: head %s", key)
	}
	return obj.info, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objs, key)
	s.mu.Unlock()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []Info
	for k, obj := range s.objs {
		if strings.HasPrefix(k, prefix) {
			infos = append(infos, obj.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
