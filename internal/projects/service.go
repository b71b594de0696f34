package projects

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
)

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	List(ctx context.Context) ([]Project, error)
	Get(ctx context.Context, id int64) (Project, error)
	FindByName(ctx context.Context, name string) (Project, error)
	Create(ctx context.Context, p Project) (Project, error)
	SetActive(ctx context.Context, id int64, active bool) error
	AssignMember(ctx context.Context, m Membership) error
	RemoveMember(ctx context.Context, userID, projectID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]Membership, error)
	ProjectNamesFor(ctx context.Context, userID int64) ([]string, error)
}

// UserPort answers user existence checks for membership assignment.
type UserPort interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// AuditPort records membership mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles project and membership management.
type Service struct {
	repo  RepositoryPort
	users UserPort
	audit AuditPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, users UserPort, audit AuditPort) *Service {
	return &Service{repo: repo, users: users, audit: audit}
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Get fetches one project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// FindByName resolves a project by exact name.
func (s *Service) FindByName(ctx context.Context, name string) (Project, error) {
	return s.repo.FindByName(ctx, strings.TrimSpace(name))
}

// Create inserts a new project.
func (s *Service) Create(ctx context.Context, actorID int64, name, description string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("projects: name required: %w", httpx.ErrValidation)
	}
	project, err := s.repo.Create(ctx, Project{Name: name, Description: strings.TrimSpace(description)})
	if err != nil {
		return Project{}, err
	}
	s.recordAudit(ctx, actorID, "PROJECT_CREATE", project.ID, map[string]any{"name": project.Name})
	return project, nil
}

// Deactivate soft-disables a project.
func (s *Service) Deactivate(ctx context.Context, actorID, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "PROJECT_DEACTIVATE", id, nil)
	return nil
}

// AssignMember binds a user to a project. Fails when the user is missing,
// the project is missing or inactive, or an active membership exists.
func (s *Service) AssignMember(ctx context.Context, userID, projectID int64, assignedBy *int64, roleInProject string, override *roles.PermissionDocument) error {
	if s.users != nil {
		ok, err := s.users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMemberUserGone
		}
	}
	project, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if !project.IsActive {
		return ErrInactive
	}
	if override != nil {
		if err := override.Validate(); err != nil {
			return err
		}
	}
	err = s.repo.AssignMember(ctx, Membership{
		UserID:        userID,
		ProjectID:     projectID,
		AssignedBy:    assignedBy,
		RoleInProject: strings.TrimSpace(roleInProject),
		Permissions:   override,
	})
	if err != nil {
		return err
	}
	var actor int64
	if assignedBy != nil {
		actor = *assignedBy
	}
	s.recordAudit(ctx, actor, "MEMBER_ASSIGN", projectID, map[string]any{"user_id": userID, "role_in_project": roleInProject})
	return nil
}

// RemoveMember revokes an active membership (soft delete).
func (s *Service) RemoveMember(ctx context.Context, userID, projectID int64, removedBy *int64) error {
	if err := s.repo.RemoveMember(ctx, userID, projectID); err != nil {
		return err
	}
	var actor int64
	if removedBy != nil {
		actor = *removedBy
	}
	s.recordAudit(ctx, actor, "MEMBER_REMOVE", projectID, map[string]any{"user_id": userID})
	return nil
}

// ListMembers returns active memberships of a project.
func (s *Service) ListMembers(ctx context.Context, projectID int64) ([]Membership, error) {
	if _, err := s.repo.Get(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, projectID)
}

// ProjectNamesFor lists the active project names a user belongs to.
func (s *Service) ProjectNamesFor(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.ProjectNamesFor(ctx, userID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, projectID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(projectID, 10),
		Meta:     meta,
	})
}
