package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/document/repository"
	"github.com/docflow/docflow/server/internal/models"
	"github.com/docflow/docflow/server/pkg/logger"
	"github.com/docflow/docflow/server/pkg/metrics"
	"github.com/google/uuid"
)

const (
	trackingPrefix   = "DOC-"
	trackingLength   = 9
	trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	createdComment = "Document Created"
)

// Directory resolves users referenced by documents. It returns an error
// matching document.ErrNotFound when no user matches.
type Directory interface {
	ResolveByEmail(ctx context.Context, email string) (models.UserRef, error)
	ResolveByID(ctx context.Context, id string) (models.UserRef, error)
}

// Archiver stores a snapshot of a document that reached a terminal status.
type Archiver interface {
	Archive(ctx context.Context, doc *document.Document) error
}

// Service defines the document workflow operations used by the handler layer.
// callerID is always the identity established by the authentication layer.
type Service interface {
	Create(ctx context.Context, callerID string, in CreateInput) (*document.Document, error)
	Inbox(ctx context.Context, callerID string) ([]*document.View, error)
	Outbox(ctx context.Context, callerID string) ([]*document.View, error)
	Participating(ctx context.Context, callerID string) ([]*document.View, error)
	Get(ctx context.Context, callerID, id string) (*document.View, error)
	UpdateStatus(ctx context.Context, callerID, id string, in StatusInput) (*document.Document, error)
	Forward(ctx context.Context, callerID, id string, in ForwardInput) (*document.Document, error)
}

type CreateInput struct {
	Title         string
	Description   string
	Type          document.Type
	Priority      document.Priority
	ReceiverEmail string
}

// StatusInput requests a status change. Version, when set, must equal the
// document's current version.
type StatusInput struct {
	Status  document.Status
	Comment string
	Version *int64
}

type ForwardInput struct {
	ReceiverEmail string
	Comment       string
	Version       *int64
}

// Options tunes the workflow service. Zero values select defaults.
type Options struct {
	Policy           document.Policy
	TrackingAttempts int
	Archiver         Archiver
	Now              func() time.Time
	TrackingID       func() (string, error)
}

type workflowService struct {
	repo     repository.Repository
	dir      Directory
	policy   document.Policy
	attempts int
	archiver Archiver
	now      func() time.Time
	trackID  func() (string, error)
}

// New returns a Service over repo that resolves users through dir.
func New(repo repository.Repository, dir Directory, opts Options) Service {
	s := &workflowService{
		repo:     repo,
		dir:      dir,
		policy:   opts.Policy,
		attempts: opts.TrackingAttempts,
		archiver: opts.Archiver,
		now:      opts.Now,
		trackID:  opts.TrackingID,
	}
	if s.attempts <= 0 {
		s.attempts = 3
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.trackID == nil {
		s.trackID = NewTrackingID
	}
	return s
}

// NewTrackingID returns "DOC-" followed by 9 random uppercase base-36 characters.
func NewTrackingID() (string, error) {
	var b strings.Builder
	b.WriteString(trackingPrefix)
	max := big.NewInt(int64(len(trackingAlphabet)))
	for i := 0; i < trackingLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("tracking id: %w", err)
		}
		b.WriteByte(trackingAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *workflowService) Create(ctx context.Context, callerID string, in CreateInput) (*document.Document, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ReceiverEmail = strings.TrimSpace(in.ReceiverEmail)
	if in.Type == "" {
		in.Type = document.TypeLetter
	}
	if in.Priority == "" {
		in.Priority = document.PriorityNormal
	}
	switch {
	case in.Title == "":
		return nil, document.Validation("Please add a document title")
	case strings.TrimSpace(in.Description) == "":
		return nil, document.Validation("Please add a description")
	case in.ReceiverEmail == "":
		return nil, document.Validation("Please specify a receiver")
	case !in.Type.Valid():
		return nil, document.Validation(fmt.Sprintf("invalid document type %q", in.Type))
	case !in.Priority.Valid():
		return nil, document.Validation(fmt.Sprintf("invalid priority %q", in.Priority))
	}

	receiver, err := s.dir.ResolveByEmail(ctx, in.ReceiverEmail)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, document.NotFound("Receiver email not found")
		}
		return nil, fmt.Errorf("resolve receiver: %w", err)
	}

	now := s.now()
	doc := &document.Document{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Priority:    in.Priority,
		Sender:      callerID,
		Receiver:    receiver.ID,
		Status:      document.StatusPending,
		History: []document.HistoryEntry{{
			ID:        uuid.NewString(),
			Kind:      document.EventStatusChanged,
			Status:    document.StatusPending,
			UpdatedBy: callerID,
			Comment:   createdComment,
			Timestamp: now,
		}},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		doc.TrackingID, err = s.trackID()
		if err != nil {
			return nil, err
		}
		err = s.repo.Create(ctx, doc)
		if err == nil {
			break
		}
		if !errors.Is(err, document.ErrConflict) || attempt >= s.attempts {
			return nil, fmt.Errorf("create document: %w", err)
		}
		logger.Warnf("tracking id %s collided (attempt %d/%d), regenerating", doc.TrackingID, attempt, s.attempts)
	}

	metrics.DocumentTransitions.WithLabelValues(string(document.StatusPending)).Inc()
	logger.Infof("document %s created by %s for %s", doc.TrackingID, callerID, receiver.ID)
	return doc, nil
}

func (s *workflowService) Inbox(ctx context.Context, callerID string) ([]*document.View, error) {
	docs, err := s.repo.FindByReceiver(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	return s.views(ctx, docs), nil
}

func (s *workflowService) Outbox(ctx context.Context, callerID string) ([]*document.View, error) {
	docs, err := s.repo.FindByActor(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	return s.views(ctx, docs), nil
}

func (s *workflowService) Participating(ctx context.Context, callerID string) ([]*document.View, error) {
	docs, err := s.repo.FindByParticipant(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return s.views(ctx, docs), nil
}

func (s *workflowService) Get(ctx context.Context, callerID, id string) (*document.View, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsParticipant(callerID) {
		return nil, document.Forbidden("Not authorized")
	}
	return newResolver(s.dir).view(ctx, doc), nil
}

func (s *workflowService) UpdateStatus(ctx context.Context, callerID, id string, in StatusInput) (*document.Document, error) {
	doc, err := s.loadForReceiver(ctx, callerID, id, in.Version, "Not authorized to update status")
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckStatus(doc.Status, in.Status); err != nil {
		return nil, err
	}

	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		comment = fmt.Sprintf("Status updated to %s", in.Status)
	}
	now := s.now()
	from := doc.Status
	doc.Status = in.Status
	doc.History = append(doc.History, document.HistoryEntry{
		ID:        uuid.NewString(),
		Kind:      document.EventStatusChanged,
		Status:    in.Status,
		UpdatedBy: callerID,
		Comment:   comment,
		Timestamp: now,
	})
	doc.UpdatedAt = now
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	metrics.DocumentTransitions.WithLabelValues(string(in.Status)).Inc()
	logger.Infof("document %s: %s -> %s by %s", doc.TrackingID, from, in.Status, callerID)
	if in.Status.Terminal() {
		s.archive(ctx, doc)
	}
	return doc, nil
}

func (s *workflowService) Forward(ctx context.Context, callerID, id string, in ForwardInput) (*document.Document, error) {
	doc, err := s.loadForReceiver(ctx, callerID, id, in.Version, "Not authorized to forward")
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.ReceiverEmail)
	if email == "" {
		return nil, document.Validation("Please specify a receiver")
	}
	next, err := s.dir.ResolveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			return nil, document.NotFound("Receiver email not found")
		}
		return nil, fmt.Errorf("resolve receiver: %w", err)
	}
	if next.ID == callerID {
		return nil, document.Validation("Cannot forward to yourself")
	}
	if err := s.policy.CheckForward(doc.Status); err != nil {
		return nil, err
	}

	comment := strings.TrimSpace(fmt.Sprintf("Forwarded to %s (%s). %s", next.Name, next.Department, strings.TrimSpace(in.Comment)))
	now := s.now()
	doc.Receiver = next.ID
	doc.Status = document.StatusPending
	doc.History = append(doc.History, document.HistoryEntry{
		ID:          uuid.NewString(),
		Kind:        document.EventForwarded,
		Status:      document.StatusForwarded,
		UpdatedBy:   callerID,
		Comment:     comment,
		ForwardedTo: next.ID,
		Timestamp:   now,
	})
	doc.UpdatedAt = now
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	metrics.DocumentTransitions.WithLabelValues(string(document.StatusForwarded)).Inc()
	logger.Infof("document %s forwarded by %s to %s", doc.TrackingID, callerID, next.ID)
	return doc, nil
}

// loadForReceiver fetches the document and checks that callerID is the one
// identity allowed to act on it. The sender gets no special rights here.
func (s *workflowService) loadForReceiver(ctx context.Context, callerID, id string, version *int64, denied string) (*document.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Receiver != callerID {
		return nil, document.Forbidden(denied)
	}
	if version != nil && *version != doc.Version {
		return nil, document.Conflict(fmt.Sprintf("document is at version %d, not %d", doc.Version, *version))
	}
	return doc, nil
}

// archive runs after the transition is committed; failures are reported but
// never undo the transition.
func (s *workflowService) archive(ctx context.Context, doc *document.Document) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, doc); err != nil {
		metrics.ArchiveFailures.Inc()
		logger.Warnf("archive document %s: %v", doc.TrackingID, err)
	}
}

func (s *workflowService) views(ctx context.Context, docs []*document.Document) []*document.View {
	r := newResolver(s.dir)
	out := make([]*document.View, 0, len(docs))
	for _, d := range docs {
		out = append(out, r.view(ctx, d))
	}
	return out
}
