package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/docflow/docflow/server/internal/document"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memEntry struct {
	doc *document.Document
	seq int64
}

// MemoryRepo is an in-memory Repository used by unit tests and when no
// MongoDB is configured. Records are copied in and out so callers never share
// state with the store.
type MemoryRepo struct {
	mu       sync.RWMutex
	store    map[string]*memEntry
	tracking map[string]string
	seq      int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*memEntry), tracking: make(map[string]string)}
}

func (m *MemoryRepo) Create(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.tracking[doc.TrackingID]; taken {
		return ErrDuplicate
	}
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if _, taken := m.store[doc.ID]; taken {
		return ErrDuplicate
	}
	m.seq++
	m.store[doc.ID] = &memEntry{doc: doc.Clone(), seq: m.seq}
	m.tracking[doc.TrackingID] = doc.ID
	return nil
}

func (m *MemoryRepo) FindByID(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.store[id]; ok {
		return e.doc.Clone(), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) FindBySender(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool { return d.Sender == userID }), nil
}

func (m *MemoryRepo) FindByReceiver(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool { return d.Receiver == userID }), nil
}

func (m *MemoryRepo) FindByActor(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool { return d.Sender == userID || d.HasActor(userID) }), nil
}

func (m *MemoryRepo) FindByParticipant(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.filter(func(d *document.Document) bool { return d.IsParticipant(userID) }), nil
}

func (m *MemoryRepo) Save(ctx context.Context, doc *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[doc.ID]
	if !ok {
		return ErrNotFound
	}
	if e.doc.Version != doc.Version {
		return ErrStaleVersion
	}
	doc.Version++
	e.doc = doc.Clone()
	return nil
}

// filter returns matching copies, newest first. Documents created in the same
// instant keep reverse insertion order.
func (m *MemoryRepo) filter(match func(*document.Document) bool) []*document.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]*memEntry, 0)
	for _, e := range m.store {
		if match(e.doc) {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]*document.Document, 0, len(hits))
	for _, e := range hits {
		out = append(out, e.doc.Clone())
	}
	return out
}
