package surveys

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telesite/telesite/internal/notifications"
	"github.com/telesite/telesite/internal/rbac"
	"github.com/telesite/telesite/internal/roles"
)

type memorySurveyRepo struct {
	surveys map[string]Survey
	nextID  int64
}

func newMemorySurveyRepo() *memorySurveyRepo {
	return &memorySurveyRepo{surveys: make(map[string]Survey)}
}

func (r *memorySurveyRepo) Get(_ context.Context, sessionID string) (Survey, error) {
	s, ok := r.surveys[sessionID]
	if !ok {
		return Survey{}, ErrNotFound
	}
	return s, nil
}

func (r *memorySurveyRepo) List(_ context.Context, project string, _, _ int) ([]Survey, int, error) {
	var out []Survey
	for _, s := range r.surveys {
		if s.Project == project {
			out = append(out, s)
		}
	}
	return out, len(out), nil
}

func (r *memorySurveyRepo) Create(_ context.Context, s Survey) (Survey, error) {
	r.nextID++
	s.ID = r.nextID
	s.Status = StatusCreated
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	r.surveys[s.SessionID] = s
	return s, nil
}

func (r *memorySurveyRepo) UpdateStatus(_ context.Context, sessionID string, from []Status, to Status) (Survey, Status, error) {
	s, ok := r.surveys[sessionID]
	if !ok {
		return Survey{}, "", ErrNotFound
	}
	if !statusIn(s.Status, from) {
		return Survey{}, "", ErrInvalidTransition
	}
	prior := s.Status
	s.Status = to
	s.UpdatedAt = time.Now()
	r.surveys[sessionID] = s
	return s, prior, nil
}

func (r *memorySurveyRepo) UpdateAssignee(_ context.Context, sessionID string, assignee *int64) (Survey, error) {
	s, ok := r.surveys[sessionID]
	if !ok {
		return Survey{}, ErrNotFound
	}
	s.AssignedTo = assignee
	r.surveys[sessionID] = s
	return s, nil
}

// roleSetEvaluator answers permission checks from a fixed role set per
// user, through the same aggregation the live evaluator uses.
type roleSetEvaluator struct {
	docs map[int64][]roles.PermissionDocument
}

func (e roleSetEvaluator) HasTransitionPermission(_ context.Context, userID int64, t roles.Transition) (bool, error) {
	return rbac.TransitionAllowed(e.docs[userID], t), nil
}

// audienceStore backs a real Dispatcher so workflow tests observe the
// actual fan-out.
type audienceStore struct {
	projects    map[string]int64
	members     map[int64]map[int64][]string
	globalRoles map[int64][]string
	inserted    []notifications.Notification
	failInsert  error
}

func newAudienceStore() *audienceStore {
	return &audienceStore{
		projects:    make(map[string]int64),
		members:     make(map[int64]map[int64][]string),
		globalRoles: make(map[int64][]string),
	}
}

func (a *audienceStore) ProjectIDByName(_ context.Context, name string) (int64, bool, error) {
	id, ok := a.projects[name]
	return id, ok, nil
}

func (a *audienceStore) MembersWithRole(_ context.Context, projectID int64, roleNames []string) ([]int64, error) {
	var out []int64
	for userID, held := range a.members[projectID] {
		for _, have := range held {
			for _, want := range roleNames {
				if have == want {
					out = append(out, userID)
				}
			}
		}
	}
	return out, nil
}

func (a *audienceStore) UserHasRole(_ context.Context, userID int64, roleName string) (bool, error) {
	for _, have := range a.globalRoles[userID] {
		if have == roleName {
			return true, nil
		}
	}
	return false, nil
}

func (a *audienceStore) BulkInsert(_ context.Context, items []notifications.Notification) (int, error) {
	if a.failInsert != nil {
		return 0, a.failInsert
	}
	a.inserted = append(a.inserted, items...)
	return len(items), nil
}

func (a *audienceStore) addMember(projectID, userID int64, roleNames ...string) {
	if a.members[projectID] == nil {
		a.members[projectID] = make(map[int64][]string)
	}
	a.members[projectID][userID] = append(a.members[projectID][userID], roleNames...)
	a.globalRoles[userID] = append(a.globalRoles[userID], roleNames...)
}

type recordingRetries struct {
	events []notifications.Event
}

func (r *recordingRetries) EnqueueRedispatch(_ context.Context, ev notifications.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type allUsers struct{}

func (allUsers) Exists(context.Context, int64) (bool, error) { return true, nil }

func coordinatorOnly() roles.PermissionDocument {
	return roles.PermissionDocument{
		SiteStatus: roles.SiteStatusPermissions{
			CreatedToSubmitted:       true,
			SubmittedToUnderRevision: true,
		},
	}
}

func newWorkflow(repo *memorySurveyRepo, evaluator roleSetEvaluator, audience *audienceStore, retries RetryPort) *Service {
	dispatcher := notifications.NewDispatcher(audience, nil, nil)
	return NewService(repo, evaluator, dispatcher, retries, allUsers{}, nil, nil)
}

func seedSurvey(repo *memorySurveyRepo, sessionID, project string, status Status, createdBy int64, assignee *int64) {
	repo.surveys[sessionID] = Survey{
		ID:         int64(len(repo.surveys) + 1),
		SessionID:  sessionID,
		SiteID:     "SITE-1",
		Project:    project,
		Status:     status,
		AssignedTo: assignee,
		CreatedBy:  createdBy,
	}
}

func TestCoordinatorSubmitsAndProjectStaffAreNotified(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusCreated, 100, nil)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {coordinatorOnly()},
	}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 100, "coordinator") // the actor
	audience.addMember(1, 101, "admin")
	audience.addMember(1, 102, "coordinator")
	audience.addMember(1, 103, "approver")

	svc := newWorkflow(repo, evaluator, audience, nil)
	ctx := context.Background()

	decision, err := svc.EvaluateTransition(ctx, 100, "s-1", "submitted")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	survey, err := svc.ApplyTransition(ctx, 100, "s-1", "submitted")
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, survey.Status)

	got := make([]int64, 0, len(audience.inserted))
	for _, n := range audience.inserted {
		require.Equal(t, notifications.TypeStatusChange, n.Type)
		got = append(got, n.UserID)
	}
	require.ElementsMatch(t, []int64{101, 102, 103}, got)
}

func TestUnauthorizedTransitionLeavesEverythingUntouched(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusCreated, 100, nil)

	// Roles exist, but for a different user entirely.
	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		999: {coordinatorOnly()},
	}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 101, "admin")

	svc := newWorkflow(repo, evaluator, audience, nil)
	ctx := context.Background()

	decision, err := svc.EvaluateTransition(ctx, 100, "s-1", "submitted")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.NotEmpty(t, decision.Reason)

	_, err = svc.ApplyTransition(ctx, 100, "s-1", "submitted")
	require.ErrorIs(t, err, ErrForbidden)

	current, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, StatusCreated, current.Status)
	require.Empty(t, audience.inserted)
}

func TestApplyTransitionRejectsWrongSourceStatus(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusApproved, 100, nil)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {coordinatorOnly()},
	}}
	svc := newWorkflow(repo, evaluator, newAudienceStore(), nil)

	_, err := svc.ApplyTransition(context.Background(), 100, "s-1", "submitted")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyTransitionAcceptsLegacyVocabulary(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusSubmitted, 100, nil)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {coordinatorOnly()},
	}}
	svc := newWorkflow(repo, evaluator, newAudienceStore(), nil)

	survey, err := svc.ApplyTransition(context.Background(), 100, "s-1", "review")
	require.NoError(t, err)
	require.Equal(t, StatusUnderRevision, survey.Status)
}

func TestFailedFanOutDegradesAndQueuesRedispatch(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusCreated, 100, nil)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {coordinatorOnly()},
	}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 101, "admin")
	audience.failInsert = context.DeadlineExceeded

	retries := &recordingRetries{}
	svc := newWorkflow(repo, evaluator, audience, retries)
	ctx := context.Background()

	survey, err := svc.ApplyTransition(ctx, 100, "s-1", "submitted")
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, survey.Status)

	require.Len(t, retries.events, 1)
	require.Equal(t, notifications.EventStatusChanged, retries.events[0].Kind)
	require.Equal(t, "s-1", retries.events[0].SurveySessionID)
	require.Equal(t, "submitted", retries.events[0].NewStatus)
}

func TestCreateNotifiesCoordinatorsAndAssignee(t *testing.T) {
	repo := newMemorySurveyRepo()
	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 100, "coordinator") // creator
	audience.addMember(1, 101, "coordinator")
	audience.globalRoles[200] = []string{"site_engineer"}

	svc := newWorkflow(repo, evaluator, audience, nil)
	ctx := context.Background()

	assignee := int64(200)
	survey, err := svc.Create(ctx, 100, "SITE-9", "Acme", &assignee)
	require.NoError(t, err)
	require.Equal(t, StatusCreated, survey.Status)
	require.NotEmpty(t, survey.SessionID)

	byType := make(map[notifications.Type][]int64)
	for _, n := range audience.inserted {
		byType[n.Type] = append(byType[n.Type], n.UserID)
	}
	require.Equal(t, []int64{101}, byType[notifications.TypeSurveyCreated])
	require.Equal(t, []int64{200}, byType[notifications.TypeAssignment])
}

func TestRequestReworkEmitsBothEvents(t *testing.T) {
	repo := newMemorySurveyRepo()
	assignee := int64(200)
	seedSurvey(repo, "s-1", "Acme", StatusUnderRevision, 100, &assignee)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {{SiteStatus: roles.SiteStatusPermissions{UnderRevisionToRework: true}}},
	}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 100, "approver") // requester
	audience.addMember(1, 101, "coordinator")
	audience.globalRoles[200] = []string{"survey_engineer"}

	svc := newWorkflow(repo, evaluator, audience, nil)

	survey, err := svc.RequestRework(context.Background(), 100, "s-1")
	require.NoError(t, err)
	require.Equal(t, StatusRework, survey.Status)

	byType := make(map[notifications.Type][]int64)
	for _, n := range audience.inserted {
		byType[n.Type] = append(byType[n.Type], n.UserID)
	}
	// The status change reaches the coordinator and the engineer
	// assignee; the explicit rework request reaches the coordinator a
	// second time, excluding the requesting approver both times.
	require.ElementsMatch(t, []int64{101, 200, 101}, byType[notifications.TypeRework])
}

// staleReadRepo serves plain reads from a snapshot that always claims
// created, the way a racing reader would; only the conditional update
// sees the stored row.
type staleReadRepo struct{ *memorySurveyRepo }

func (r staleReadRepo) Get(ctx context.Context, sessionID string) (Survey, error) {
	s, err := r.memorySurveyRepo.Get(ctx, sessionID)
	if err != nil {
		return Survey{}, err
	}
	s.Status = StatusCreated
	return s, nil
}

func TestTransitionEventOldStatusComesFromTheUpdate(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusRework, 100, nil)

	evaluator := roleSetEvaluator{docs: map[int64][]roles.PermissionDocument{
		100: {coordinatorOnly()},
	}}
	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.addMember(1, 101, "admin")

	dispatcher := notifications.NewDispatcher(audience, nil, nil)
	svc := NewService(staleReadRepo{repo}, evaluator, dispatcher, nil, allUsers{}, nil, nil)

	_, err := svc.ApplyTransition(context.Background(), 100, "s-1", "submitted")
	require.NoError(t, err)

	require.Len(t, audience.inserted, 1)
	require.Contains(t, audience.inserted[0].Message, "from Rework to Submitted")
}

func TestAssignUpdatesAssigneeAndNotifies(t *testing.T) {
	repo := newMemorySurveyRepo()
	seedSurvey(repo, "s-1", "Acme", StatusCreated, 100, nil)

	audience := newAudienceStore()
	audience.projects["Acme"] = 1
	audience.globalRoles[200] = []string{"site_engineer"}

	svc := newWorkflow(repo, roleSetEvaluator{}, audience, nil)

	survey, err := svc.Assign(context.Background(), 100, "s-1", 200)
	require.NoError(t, err)
	require.NotNil(t, survey.AssignedTo)
	require.Equal(t, int64(200), *survey.AssignedTo)
	require.Len(t, audience.inserted, 1)
	require.Equal(t, notifications.TypeAssignment, audience.inserted[0].Type)
}
