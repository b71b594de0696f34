package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telesite/telesite/internal/roles"
)

type memoryBindingRepo struct {
	roles    map[int64]roles.Role
	bindings map[int64][]int64
	grants   map[int64][]Grant
}

func newMemoryBindingRepo() *memoryBindingRepo {
	return &memoryBindingRepo{
		roles:    make(map[int64]roles.Role),
		bindings: make(map[int64][]int64),
		grants:   make(map[int64][]Grant),
	}
}

func (r *memoryBindingRepo) ActiveRoles(_ context.Context, userID int64) ([]roles.Role, error) {
	var out []roles.Role
	for _, roleID := range r.bindings[userID] {
		role, ok := r.roles[roleID]
		if !ok || !role.IsActive {
			continue
		}
		out = append(out, role)
	}
	return out, nil
}

func (r *memoryBindingRepo) ListGrants(_ context.Context, userID int64) ([]Grant, error) {
	return r.grants[userID], nil
}

func (r *memoryBindingRepo) Assign(_ context.Context, userID, roleID int64, assignedBy *int64) error {
	for _, existing := range r.bindings[userID] {
		if existing == roleID {
			return ErrBindingExists
		}
	}
	r.bindings[userID] = append(r.bindings[userID], roleID)
	r.grants[userID] = append(r.grants[userID], Grant{Role: r.roles[roleID], AssignedBy: assignedBy, AssignedAt: time.Now()})
	return nil
}

func (r *memoryBindingRepo) Remove(_ context.Context, userID, roleID int64) error {
	kept := r.bindings[userID][:0]
	removed := false
	for _, existing := range r.bindings[userID] {
		if existing == roleID {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return ErrBindingNotFound
	}
	r.bindings[userID] = kept
	return nil
}

func (r *memoryBindingRepo) HasActiveRole(_ context.Context, userID int64, names []string) (bool, error) {
	for _, roleID := range r.bindings[userID] {
		role, ok := r.roles[roleID]
		if !ok || !role.IsActive {
			continue
		}
		for _, name := range names {
			if role.Name == name {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memoryBindingRepo) Get(_ context.Context, id int64) (roles.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return roles.Role{}, roles.ErrNotFound
	}
	return role, nil
}

type staticUsers struct{ known map[int64]bool }

func (u staticUsers) Exists(_ context.Context, userID int64) (bool, error) {
	return u.known[userID], nil
}

type staticMemberships struct{ projects map[int64][]string }

func (m staticMemberships) ProjectNamesFor(_ context.Context, userID int64) ([]string, error) {
	return m.projects[userID], nil
}

func newTestService(repo *memoryBindingRepo, users staticUsers) *Service {
	return NewService(repo, repo, users, staticMemberships{projects: map[int64][]string{}}, nil)
}

func seedEditorRole(repo *memoryBindingRepo, id int64, active bool) {
	repo.roles[id] = roles.Role{
		ID:       id,
		Name:     "coordinator",
		IsActive: active,
		Permissions: roles.PermissionDocument{
			SiteStatus: roles.SiteStatusPermissions{CreatedToSubmitted: true},
			SiteAccess: roles.SiteAccessPermissions{CreatedStatus: roles.AccessEdit},
		},
	}
}

func TestZeroRolesDenyEverything(t *testing.T) {
	repo := newMemoryBindingRepo()
	svc := newTestService(repo, staticUsers{known: map[int64]bool{1: true}})
	ctx := context.Background()

	for _, tr := range roles.Transitions() {
		allowed, err := svc.HasTransitionPermission(ctx, 1, tr)
		require.NoError(t, err)
		require.False(t, allowed)
	}
	for _, status := range []string{"created", "rework", "submitted", "under_revision", "approved"} {
		level, err := svc.AccessLevelFor(ctx, 1, status)
		require.NoError(t, err)
		require.Equal(t, roles.AccessNone, level)
	}
}

func TestAssignGrantsAndRemoveRevokesImmediately(t *testing.T) {
	repo := newMemoryBindingRepo()
	seedEditorRole(repo, 10, true)
	svc := newTestService(repo, staticUsers{known: map[int64]bool{1: true}})
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, 1, 10, nil))

	level, err := svc.AccessLevelFor(ctx, 1, "created")
	require.NoError(t, err)
	require.Equal(t, roles.AccessEdit, level)

	allowed, err := svc.HasTransitionPermission(ctx, 1, roles.TransitionCreatedToSubmitted)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, svc.Remove(ctx, 1, 10, nil))

	level, err = svc.AccessLevelFor(ctx, 1, "created")
	require.NoError(t, err)
	require.Equal(t, roles.AccessNone, level)

	allowed, err = svc.HasTransitionPermission(ctx, 1, roles.TransitionCreatedToSubmitted)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestAssignRejectsDuplicateActiveBinding(t *testing.T) {
	repo := newMemoryBindingRepo()
	seedEditorRole(repo, 10, true)
	svc := newTestService(repo, staticUsers{known: map[int64]bool{1: true}})
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, 1, 10, nil))
	require.ErrorIs(t, svc.Assign(ctx, 1, 10, nil), ErrBindingExists)
}

func TestAssignRejectsMissingUserAndInactiveRole(t *testing.T) {
	repo := newMemoryBindingRepo()
	seedEditorRole(repo, 10, true)
	seedEditorRole(repo, 11, false)
	svc := newTestService(repo, staticUsers{known: map[int64]bool{1: true}})
	ctx := context.Background()

	require.ErrorIs(t, svc.Assign(ctx, 99, 10, nil), ErrUserNotFound)
	require.ErrorIs(t, svc.Assign(ctx, 1, 11, nil), ErrRoleInactive)
	require.ErrorIs(t, svc.Assign(ctx, 1, 404, nil), roles.ErrNotFound)
}

func TestInactiveRoleGrantsNothing(t *testing.T) {
	repo := newMemoryBindingRepo()
	seedEditorRole(repo, 10, true)
	svc := newTestService(repo, staticUsers{known: map[int64]bool{1: true}})
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, 1, 10, nil))

	// Deactivating the role definition itself revokes the grant on the
	// next evaluation, same as removing the binding.
	role := repo.roles[10]
	role.IsActive = false
	repo.roles[10] = role

	allowed, err := svc.HasTransitionPermission(ctx, 1, roles.TransitionCreatedToSubmitted)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestUserPermissionsMergesRolesAndProjects(t *testing.T) {
	repo := newMemoryBindingRepo()
	seedEditorRole(repo, 10, true)
	repo.roles[20] = roles.Role{
		ID:       20,
		Name:     "approver",
		IsActive: true,
		Permissions: roles.PermissionDocument{
			SiteStatus: roles.SiteStatusPermissions{UnderRevisionToApproved: true},
			SiteAccess: roles.SiteAccessPermissions{UnderRevisionStatus: roles.AccessEdit},
		},
	}
	svc := NewService(repo, repo, staticUsers{known: map[int64]bool{1: true}},
		staticMemberships{projects: map[int64][]string{1: {"Acme"}}}, nil)
	ctx := context.Background()

	require.NoError(t, svc.Assign(ctx, 1, 10, nil))
	require.NoError(t, svc.Assign(ctx, 1, 20, nil))

	summary, err := svc.UserPermissions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.UserID)
	require.ElementsMatch(t, []string{"coordinator", "approver"}, summary.Roles)
	require.Equal(t, []string{"Acme"}, summary.Projects)
	require.True(t, summary.SiteStatus.CreatedToSubmitted)
	require.True(t, summary.SiteStatus.UnderRevisionToApproved)
	require.False(t, summary.SiteStatus.SubmittedToUnderRevision)
	require.Equal(t, roles.AccessEdit, summary.SiteAccess.CreatedStatus)
	require.Equal(t, roles.AccessEdit, summary.SiteAccess.UnderRevisionStatus)
	require.Equal(t, roles.AccessNone, summary.SiteAccess.ReworkStatus)
}
