package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role names that scope notification audiences.
const (
	roleAdmin          = "admin"
	roleCoordinator    = "coordinator"
	roleApprover       = "approver"
	roleSurveyEngineer = "survey_engineer"
	roleSiteEngineer   = "site_engineer"
)

// AudiencePort defines the store reads and the bulk write the dispatcher
// performs.
type AudiencePort interface {
	ProjectIDByName(ctx context.Context, name string) (int64, bool, error)
	MembersWithRole(ctx context.Context, projectID int64, roleNames []string) ([]int64, error)
	UserHasRole(ctx context.Context, userID int64, roleName string) (bool, error)
	BulkInsert(ctx context.Context, items []Notification) (int, error)
}

// Invalidator drops cached unread counters after new rows land.
type Invalidator interface {
	Invalidate(ctx context.Context, userIDs ...int64)
}

// Dispatcher computes the audience for a workflow event and persists one
// notification per recipient. It holds no state between events and is
// safe to re-invoke for the same event; the worst case of a retry after
// partial failure is a duplicate notification.
type Dispatcher struct {
	repo   AudiencePort
	cache  Invalidator
	logger *slog.Logger
	titler cases.Caser
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(repo AudiencePort, cache Invalidator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{repo: repo, cache: cache, logger: logger, titler: cases.Title(language.English)}
}

// Dispatch fans out one event. Returns the number of notifications
// created. A project name with no matching row yields zero rows and a nil
// error; surveys reference projects by free text, so drift is expected.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (int, error) {
	switch ev.Kind {
	case EventSurveyCreated:
		return d.surveyCreated(ctx, ev)
	case EventStatusChanged:
		return d.statusChanged(ctx, ev)
	case EventAssignment:
		return d.assignment(ctx, ev)
	case EventReworkRequested:
		return d.reworkRequested(ctx, ev)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
}

// surveyCreated notifies every project coordinator except the creator.
func (d *Dispatcher) surveyCreated(ctx context.Context, ev Event) (int, error) {
	projectID, found, err := d.repo.ProjectIDByName(ctx, ev.ProjectName)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	audience, err := d.repo.MembersWithRole(ctx, projectID, []string{roleCoordinator})
	if err != nil {
		return 0, err
	}
	recipients := dedupe(audience, ev.ActorID)
	return d.persist(ctx, recipients, Notification{
		Title:            "New Survey",
		Message:          fmt.Sprintf("A new survey %s was created in project %s", ev.SurveySessionID, ev.ProjectName),
		Type:             TypeSurveyCreated,
		RelatedSurveyID:  ev.SurveySessionID,
		RelatedProjectID: &projectID,
	})
}

// statusChanged notifies project admins and coordinators, the assignee on
// rework when they are a survey engineer, and project approvers on
// submission. The acting user never receives their own notification.
func (d *Dispatcher) statusChanged(ctx context.Context, ev Event) (int, error) {
	projectID, found, err := d.repo.ProjectIDByName(ctx, ev.ProjectName)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	var (
		staff          []int64
		approvers      []int64
		notifyAssignee bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		staff, err = d.repo.MembersWithRole(gctx, projectID, []string{roleAdmin, roleCoordinator})
		return err
	})
	if ev.NewStatus == "submitted" {
		g.Go(func() error {
			var err error
			approvers, err = d.repo.MembersWithRole(gctx, projectID, []string{roleApprover})
			return err
		})
	}
	if ev.NewStatus == "rework" && ev.AssigneeID != 0 {
		g.Go(func() error {
			var err error
			notifyAssignee, err = d.repo.UserHasRole(gctx, ev.AssigneeID, roleSurveyEngineer)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	audience := append(append([]int64{}, staff...), approvers...)
	if notifyAssignee {
		audience = append(audience, ev.AssigneeID)
	}
	recipients := dedupe(audience, ev.ActorID)

	kind := TypeStatusChange
	switch ev.NewStatus {
	case "rework":
		kind = TypeRework
	case "approved":
		kind = TypeApproval
	}
	return d.persist(ctx, recipients, Notification{
		Title:            d.humanize(string(kind)),
		Message:          fmt.Sprintf("Survey %s in project %s moved from %s to %s", ev.SurveySessionID, ev.ProjectName, d.humanize(ev.OldStatus), d.humanize(ev.NewStatus)),
		Type:             kind,
		RelatedSurveyID:  ev.SurveySessionID,
		RelatedProjectID: &projectID,
	})
}

// assignment notifies the assignee alone, and only when they are a site
// engineer; assignment notices are scoped to field personnel.
func (d *Dispatcher) assignment(ctx context.Context, ev Event) (int, error) {
	if ev.AssigneeID == 0 {
		return 0, nil
	}
	isEngineer, err := d.repo.UserHasRole(ctx, ev.AssigneeID, roleSiteEngineer)
	if err != nil {
		return 0, err
	}
	if !isEngineer {
		return 0, nil
	}
	var relatedProject *int64
	if projectID, found, err := d.repo.ProjectIDByName(ctx, ev.ProjectName); err != nil {
		return 0, err
	} else if found {
		relatedProject = &projectID
	}
	return d.persist(ctx, []int64{ev.AssigneeID}, Notification{
		Title:            "Survey Assigned",
		Message:          fmt.Sprintf("Survey %s in project %s was assigned to you", ev.SurveySessionID, ev.ProjectName),
		Type:             TypeAssignment,
		RelatedSurveyID:  ev.SurveySessionID,
		RelatedProjectID: relatedProject,
	})
}

// reworkRequested notifies project coordinators and approvers, excluding
// the requester.
func (d *Dispatcher) reworkRequested(ctx context.Context, ev Event) (int, error) {
	projectID, found, err := d.repo.ProjectIDByName(ctx, ev.ProjectName)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	audience, err := d.repo.MembersWithRole(ctx, projectID, []string{roleCoordinator, roleApprover})
	if err != nil {
		return 0, err
	}
	recipients := dedupe(audience, ev.ActorID)
	return d.persist(ctx, recipients, Notification{
		Title:            "Rework Requested",
		Message:          fmt.Sprintf("Rework was requested for survey %s in project %s", ev.SurveySessionID, ev.ProjectName),
		Type:             TypeRework,
		RelatedSurveyID:  ev.SurveySessionID,
		RelatedProjectID: &projectID,
	})
}

func (d *Dispatcher) persist(ctx context.Context, recipients []int64, template Notification) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}
	items := make([]Notification, 0, len(recipients))
	for _, userID := range recipients {
		n := template
		n.UserID = userID
		items = append(items, n)
	}
	written, err := d.repo.BulkInsert(ctx, items)
	if err != nil {
		return written, err
	}
	if d.cache != nil {
		d.cache.Invalidate(ctx, recipients...)
	}
	return written, nil
}

func (d *Dispatcher) humanize(s string) string {
	return d.titler.String(strings.ReplaceAll(s, "_", " "))
}

// dedupe removes duplicate recipients and the excluded actor, preserving
// first-seen order.
func dedupe(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == exclude || id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
