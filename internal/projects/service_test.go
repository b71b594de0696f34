package projects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
)

type memoryProjectRepo struct {
	projects map[int64]Project
	members  map[int64][]Membership
	nextID   int64
}

func newMemoryProjectRepo() *memoryProjectRepo {
	return &memoryProjectRepo{
		projects: make(map[int64]Project),
		members:  make(map[int64][]Membership),
	}
}

func (r *memoryProjectRepo) List(_ context.Context) ([]Project, error) {
	out := make([]Project, 0, len(r.projects))
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryProjectRepo) Get(_ context.Context, id int64) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryProjectRepo) FindByName(_ context.Context, name string) (Project, error) {
	for _, p := range r.projects {
		if p.Name == name {
			return p, nil
		}
	}
	return Project{}, ErrNotFound
}

func (r *memoryProjectRepo) Create(_ context.Context, p Project) (Project, error) {
	for _, existing := range r.projects {
		if existing.Name == p.Name {
			return Project{}, ErrDuplicate
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.IsActive = true
	p.CreatedAt = time.Now()
	r.projects[p.ID] = p
	return p, nil
}

func (r *memoryProjectRepo) SetActive(_ context.Context, id int64, active bool) error {
	p, ok := r.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.IsActive = active
	r.projects[id] = p
	return nil
}

func (r *memoryProjectRepo) AssignMember(_ context.Context, m Membership) error {
	for _, existing := range r.members[m.ProjectID] {
		if existing.UserID == m.UserID && existing.IsActive {
			return ErrMemberExists
		}
	}
	m.IsActive = true
	m.AssignedAt = time.Now()
	r.members[m.ProjectID] = append(r.members[m.ProjectID], m)
	return nil
}

func (r *memoryProjectRepo) RemoveMember(_ context.Context, userID, projectID int64) error {
	for i, existing := range r.members[projectID] {
		if existing.UserID == userID && existing.IsActive {
			r.members[projectID][i].IsActive = false
			return nil
		}
	}
	return ErrMemberNotFound
}

func (r *memoryProjectRepo) ListMembers(_ context.Context, projectID int64) ([]Membership, error) {
	var out []Membership
	for _, m := range r.members[projectID] {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryProjectRepo) ProjectNamesFor(_ context.Context, userID int64) ([]string, error) {
	var out []string
	for projectID, members := range r.members {
		for _, m := range members {
			if m.UserID == userID && m.IsActive && r.projects[projectID].IsActive {
				out = append(out, r.projects[projectID].Name)
			}
		}
	}
	return out, nil
}

type knownUsers struct{ ids map[int64]bool }

func (u knownUsers) Exists(_ context.Context, userID int64) (bool, error) {
	return u.ids[userID], nil
}

func newProjectService(repo *memoryProjectRepo) *Service {
	return NewService(repo, knownUsers{ids: map[int64]bool{1: true, 2: true}}, nil)
}

func TestCreateProjectTrimsAndValidates(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()

	project, err := svc.Create(ctx, 1, "  Acme  ", " Fiber rollout ")
	require.NoError(t, err)
	require.Equal(t, "Acme", project.Name)
	require.Equal(t, "Fiber rollout", project.Description)
	require.True(t, project.IsActive)

	_, err = svc.Create(ctx, 1, "   ", "")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, 1, "Acme", "")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestAssignMemberGuards(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()

	project, err := svc.Create(ctx, 1, "Acme", "")
	require.NoError(t, err)

	require.NoError(t, svc.AssignMember(ctx, 2, project.ID, nil, "lead", nil))
	require.ErrorIs(t, svc.AssignMember(ctx, 2, project.ID, nil, "lead", nil), ErrMemberExists)
	require.ErrorIs(t, svc.AssignMember(ctx, 99, project.ID, nil, "", nil), ErrMemberUserGone)
	require.ErrorIs(t, svc.AssignMember(ctx, 1, 404, nil, "", nil), ErrNotFound)

	require.NoError(t, svc.Deactivate(ctx, 1, project.ID))
	require.ErrorIs(t, svc.AssignMember(ctx, 1, project.ID, nil, "", nil), ErrInactive)
}

func TestAssignMemberValidatesOverrideDocument(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()

	project, err := svc.Create(ctx, 1, "Acme", "")
	require.NoError(t, err)

	bad := &roles.PermissionDocument{
		SiteAccess: roles.SiteAccessPermissions{CreatedStatus: roles.AccessLevel("owner")},
	}
	require.ErrorIs(t, svc.AssignMember(ctx, 2, project.ID, nil, "", bad), httpx.ErrValidation)

	good := &roles.PermissionDocument{
		SiteAccess: roles.SiteAccessPermissions{CreatedStatus: roles.AccessView},
	}
	require.NoError(t, svc.AssignMember(ctx, 2, project.ID, nil, "", good))
}

func TestRemoveMemberSoftDeletes(t *testing.T) {
	repo := newMemoryProjectRepo()
	svc := newProjectService(repo)
	ctx := context.Background()

	project, err := svc.Create(ctx, 1, "Acme", "")
	require.NoError(t, err)
	require.NoError(t, svc.AssignMember(ctx, 2, project.ID, nil, "", nil))

	names, err := svc.ProjectNamesFor(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"Acme"}, names)

	require.NoError(t, svc.RemoveMember(ctx, 2, project.ID, nil))
	require.ErrorIs(t, svc.RemoveMember(ctx, 2, project.ID, nil), ErrMemberNotFound)

	names, err = svc.ProjectNamesFor(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, names)

	// Rebinding after removal is a fresh assignment, not a duplicate.
	require.NoError(t, svc.AssignMember(ctx, 2, project.ID, nil, "", nil))
}
