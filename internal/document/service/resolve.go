package service

import (
	"context"

	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/models"
	"github.com/docflow/docflow/server/pkg/logger"
)

// resolver memoizes user lookups for the duration of one call so a document
// with a long history does not hit the directory once per entry.
type resolver struct {
	dir  Directory
	seen map[string]models.UserRef
}

func newResolver(dir Directory) *resolver {
	return &resolver{dir: dir, seen: make(map[string]models.UserRef)}
}

// ref resolves id; a user that no longer resolves is shown by id only.
func (r *resolver) ref(ctx context.Context, id string) models.UserRef {
	if u, ok := r.seen[id]; ok {
		return u
	}
	u, err := r.dir.ResolveByID(ctx, id)
	if err != nil {
		logger.Warnf("resolve user %s: %v", id, err)
		u = models.UserRef{ID: id}
	}
	r.seen[id] = u
	return u
}

func (r *resolver) view(ctx context.Context, d *document.Document) *document.View {
	v := &document.View{
		ID:          d.ID,
		TrackingID:  d.TrackingID,
		Title:       d.Title,
		Description: d.Description,
		Type:        d.Type,
		Priority:    d.Priority,
		Sender:      r.ref(ctx, d.Sender),
		Receiver:    r.ref(ctx, d.Receiver),
		Status:      d.Status,
		History:     make([]document.HistoryView, 0, len(d.History)),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, h := range d.History {
		hv := document.HistoryView{HistoryEntry: h, UpdatedBy: r.ref(ctx, h.UpdatedBy)}
		if h.ForwardedTo != "" {
			to := r.ref(ctx, h.ForwardedTo)
			hv.ForwardedTo = &to
		}
		v.History = append(v.History, hv)
	}
	return v
}
