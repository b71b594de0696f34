package rbac

import (
	"context"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
)

// RepositoryPort defines binding persistence used by the Service.
type RepositoryPort interface {
	ActiveRoles(ctx context.Context, userID int64) ([]roles.Role, error)
	ListGrants(ctx context.Context, userID int64) ([]Grant, error)
	Assign(ctx context.Context, userID, roleID int64, assignedBy *int64) error
	Remove(ctx context.Context, userID, roleID int64) error
	HasActiveRole(ctx context.Context, userID int64, names []string) (bool, error)
}

// RolePort exposes role lookups from the roles store.
type RolePort interface {
	Get(ctx context.Context, id int64) (roles.Role, error)
}

// UserPort answers user existence checks.
type UserPort interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// MembershipPort lists project names a user is actively bound to.
type MembershipPort interface {
	ProjectNamesFor(ctx context.Context, userID int64) ([]string, error)
}

// AuditPort records binding mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service evaluates permissions and manages user-role bindings.
// Permissions are re-derived from the current active bindings on every
// call; revoking a role is visible on the next check.
type Service struct {
	repo        RepositoryPort
	roleStore   RolePort
	users       UserPort
	memberships MembershipPort
	audit       AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, roleStore RolePort, users UserPort, memberships MembershipPort, audit AuditPort) *Service {
	return &Service{repo: repo, roleStore: roleStore, users: users, memberships: memberships, audit: audit}
}

func (s *Service) activeDocuments(ctx context.Context, userID int64) ([]roles.PermissionDocument, []string, error) {
	active, err := s.repo.ActiveRoles(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	docs := make([]roles.PermissionDocument, 0, len(active))
	names := make([]string, 0, len(active))
	for _, role := range active {
		docs = append(docs, role.Permissions)
		names = append(names, role.Name)
	}
	return docs, names, nil
}

// HasTransitionPermission reports whether any active role grants the
// transition. A user with zero active roles is always denied.
func (s *Service) HasTransitionPermission(ctx context.Context, userID int64, t roles.Transition) (bool, error) {
	docs, _, err := s.activeDocuments(ctx, userID)
	if err != nil {
		return false, err
	}
	return TransitionAllowed(docs, t), nil
}

// AccessLevelFor returns the effective access level for a stored status.
func (s *Service) AccessLevelFor(ctx context.Context, userID int64, status string) (roles.AccessLevel, error) {
	docs, _, err := s.activeDocuments(ctx, userID)
	if err != nil {
		return roles.AccessNone, err
	}
	return MaxAccess(docs, status), nil
}

// HasRole reports whether the user holds any of the named roles.
func (s *Service) HasRole(ctx context.Context, userID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	return s.repo.HasActiveRole(ctx, userID, names)
}

// UserPermissions aggregates the user's roles and project memberships into
// a summary document for the UI. Role and membership reads are independent
// and run concurrently.
func (s *Service) UserPermissions(ctx context.Context, userID int64) (PermissionSummary, error) {
	var (
		docs      []roles.PermissionDocument
		roleNames []string
		projects  []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, roleNames, err = s.activeDocuments(gctx, userID)
		return err
	})
	g.Go(func() error {
		if s.memberships == nil {
			return nil
		}
		var err error
		projects, err = s.memberships.ProjectNamesFor(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return PermissionSummary{}, err
	}
	merged := Merge(docs)
	return PermissionSummary{
		UserID:     userID,
		Roles:      roleNames,
		Projects:   projects,
		SiteStatus: merged.SiteStatus,
		SiteAccess: merged.SiteAccess,
	}, nil
}

// ListGrants returns the user's active role grants.
func (s *Service) ListGrants(ctx context.Context, userID int64) ([]Grant, error) {
	return s.repo.ListGrants(ctx, userID)
}

// Assign binds a role to a user. Fails when the user is missing, the role
// is missing or inactive, or an active binding already exists.
func (s *Service) Assign(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	if s.users != nil {
		ok, err := s.users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}
	}
	role, err := s.roleStore.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if !role.IsActive {
		return ErrRoleInactive
	}
	if err := s.repo.Assign(ctx, userID, roleID, assignedBy); err != nil {
		return err
	}
	s.recordAudit(ctx, assignedBy, "ROLE_ASSIGN", userID, map[string]any{"role": role.Name})
	return nil
}

// Remove revokes an active binding. The permission disappears on the next
// evaluation; nothing is cached.
func (s *Service) Remove(ctx context.Context, userID, roleID int64, removedBy *int64) error {
	if err := s.repo.Remove(ctx, userID, roleID); err != nil {
		return err
	}
	s.recordAudit(ctx, removedBy, "ROLE_REMOVE", userID, map[string]any{"role_id": roleID})
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID *int64, action string, subjectID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actor int64
	if actorID != nil {
		actor = *actorID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "user_role",
		EntityID: strconv.FormatInt(subjectID, 10),
		Meta:     meta,
	})
}
