package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docflow/docflow/server/internal/document"
	"github.com/docflow/docflow/server/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken         = document.Conflict("Email already exists")
	ErrUserNotFound       = document.NotFound("User not found")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrNotVerified        = errors.New("Please verify your email")
)

// RegisterInput carries a new local account.
type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	Department string
	Verified   bool
}

// Service encapsulates user-related business logic. It also acts as the
// identity directory consulted by the document workflow.
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Register creates a local account with a bcrypt password hash. The display
// name defaults to the local part of the email.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, document.Validation("Please provide a valid email")
	}
	if len(in.Password) < 6 {
		return nil, document.Validation("Password must be at least 6 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	u := &models.User{
		Email:        email,
		Name:         name,
		Department:   strings.TrimSpace(in.Department),
		PasswordHash: string(hash),
		IsVerified:   in.Verified,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.IsVerified {
		return nil, ErrNotVerified
	}
	return u, nil
}

// UpsertFromClaims creates or updates a user using OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return nil, nil
	}
	return s.repo.UpsertBySub(ctx, &models.User{Sub: sub, Email: email, Name: name})
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveByEmail implements the document directory lookup by email.
func (s *Service) ResolveByEmail(ctx context.Context, email string) (models.UserRef, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return models.UserRef{}, err
	}
	if u == nil {
		return models.UserRef{}, ErrUserNotFound
	}
	return u.Ref(), nil
}

// ResolveByID implements the document directory lookup by id.
func (s *Service) ResolveByID(ctx context.Context, id string) (models.UserRef, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return models.UserRef{}, err
	}
	if u == nil {
		return models.UserRef{}, ErrUserNotFound
	}
	return u.Ref(), nil
}
