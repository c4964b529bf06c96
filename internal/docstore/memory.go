package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/google/uuid"
)

type memoryEntry struct {
	data    []byte
	version string
}

// MemoryStore keeps documents in process memory. It backs tests and
// dry runs.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[Location]memoryEntry
	puts int
	log  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Location]memoryEntry)}
}

func (m *MemoryStore) Get(_ context.Context, loc Location) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.docs[loc]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &Object{Data: append([]byte(nil), e.data...), Version: e.version}, nil
}

func (m *MemoryStore) Put(_ context.Context, loc Location, data []byte, version, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.docs[loc]
	switch {
	case version == "" && exists:
		return "", fmt.Errorf("%s already exists: %w", loc, common.ErrVersionConflict)
	case version != "" && !exists:
		return "", fmt.Errorf("%s does not exist: %w", loc, common.ErrVersionConflict)
	case version != "" && e.version != version:
		return "", fmt.Errorf("%s is at %s, not %s: %w", loc, e.version, version, common.ErrVersionConflict)
	}

	next := uuid.NewString()
	m.docs[loc] = memoryEntry{data: append([]byte(nil), data...), version: next}
	m.puts++
	m.log = append(m.log, message)
	return next, nil
}

// Set writes data unconditionally and returns the new version. Tests use it
// to seed documents and to simulate a concurrent writer.
func (m *MemoryStore) Set(loc Location, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := uuid.NewString()
	m.docs[loc] = memoryEntry{data: append([]byte(nil), data...), version: next}
	return next
}

// Puts returns how many conditional writes have succeeded.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Messages returns the change messages of successful writes, oldest first.
func (m *MemoryStore) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.log...)
}
