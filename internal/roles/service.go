package roles

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, id int64, description string, doc PermissionDocument) (Role, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditPort records role mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role policy management.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a new role.
func (s *Service) Create(ctx context.Context, actorID int64, name, description string, doc PermissionDocument) (Role, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return Role{}, fmt.Errorf("roles: name required: %w", httpx.ErrValidation)
	}
	if err := doc.Validate(); err != nil {
		return Role{}, err
	}
	role, err := s.repo.Create(ctx, Role{Name: name, Description: strings.TrimSpace(description), Permissions: doc})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "ROLE_CREATE", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// Update replaces a role's description and permission document.
func (s *Service) Update(ctx context.Context, actorID, id int64, description string, doc PermissionDocument) (Role, error) {
	if err := doc.Validate(); err != nil {
		return Role{}, err
	}
	role, err := s.repo.Update(ctx, id, strings.TrimSpace(description), doc)
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, actorID, "ROLE_UPDATE", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// Deactivate soft-disables a role. Bindings referencing it stop granting
// anything on the next evaluation.
func (s *Service) Deactivate(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_DEACTIVATE", id, nil)
	return nil
}

// Reactivate re-enables a previously deactivated role.
func (s *Service) Reactivate(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetActive(ctx, id, true); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ROLE_REACTIVATE", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	})
}
