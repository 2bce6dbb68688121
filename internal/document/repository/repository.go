package repository

import (
	"context"

	"github.com/docflow/docflow/server/internal/document"
)

var (
	ErrNotFound     = document.NotFound("Document not found")
	ErrDuplicate    = document.Conflict("tracking id already exists")
	ErrStaleVersion = document.Conflict("document was modified by another request")
)

// Repository is the persistence contract for documents. Lists are returned
// newest createdAt first.
type Repository interface {
	Create(ctx context.Context, doc *document.Document) error
	FindByID(ctx context.Context, id string) (*document.Document, error)
	FindBySender(ctx context.Context, userID string) ([]*document.Document, error)
	FindByReceiver(ctx context.Context, userID string) ([]*document.Document, error)
	// FindByActor matches the sender or any history actor.
	FindByActor(ctx context.Context, userID string) ([]*document.Document, error)
	// FindByParticipant matches the sender, the receiver or any history actor.
	FindByParticipant(ctx context.Context, userID string) ([]*document.Document, error)
	// Save replaces the stored record when its version equals doc.Version and
	// bumps doc.Version on success.
	Save(ctx context.Context, doc *document.Document) error
}
