package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docflow/docflow/server/internal/document"
)

// ObjectStore is the subset of an object store the archiver writes to.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// Snapshot is the archived form of a document that reached a final status.
type Snapshot struct {
	ArchivedAt time.Time          `json:"archivedAt"`
	Document   *document.Document `json:"document"`
}

// Archiver writes JSON snapshots of finished documents to an ObjectStore.
type Archiver struct {
	store ObjectStore
	now   func() time.Time
}

func NewArchiver(store ObjectStore) *Archiver {
	return &Archiver{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ArchiveKey is the object key for a document snapshot.
func ArchiveKey(trackingID string) string {
	return "archive/" + trackingID + ".json"
}

// Archive stores doc under ArchiveKey, overwriting any earlier snapshot.
func (a *Archiver) Archive(ctx context.Context, doc *document.Document) error {
	b, err := json.Marshal(Snapshot{ArchivedAt: a.now(), Document: doc})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := ArchiveKey(doc.TrackingID)
	if err := a.store.Put(ctx, key, bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
