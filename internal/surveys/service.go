package surveys

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/telesite/telesite/internal/notifications"
	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
	"github.com/telesite/telesite/internal/shared"
)

// RepositoryPort defines data access methods for surveys.
type RepositoryPort interface {
	Get(ctx context.Context, sessionID string) (Survey, error)
	List(ctx context.Context, project string, limit, offset int) ([]Survey, int, error)
	Create(ctx context.Context, s Survey) (Survey, error)
	UpdateStatus(ctx context.Context, sessionID string, from []Status, to Status) (Survey, Status, error)
	UpdateAssignee(ctx context.Context, sessionID string, assignee *int64) (Survey, error)
}

// EvaluatorPort answers permission questions about the acting user.
type EvaluatorPort interface {
	HasTransitionPermission(ctx context.Context, userID int64, t roles.Transition) (bool, error)
}

// NotifierPort fans a workflow event out to its audience.
type NotifierPort interface {
	Dispatch(ctx context.Context, ev notifications.Event) (int, error)
}

// RetryPort re-enqueues an event whose fan-out failed. Nil disables
// retries; the failure is still logged.
type RetryPort interface {
	EnqueueRedispatch(ctx context.Context, ev notifications.Event) error
}

// UserPort answers user existence checks for assignment.
type UserPort interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// AuditPort records workflow mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts transition outcomes. Satisfied by
// observability.Metrics; nil disables counting.
type MetricsPort interface {
	RecordTransition(target, outcome string)
}

// Service is the survey workflow. Every status change passes through here
// so the permission guard and the notification fan-out cannot be skipped.
type Service struct {
	repo      RepositoryPort
	evaluator EvaluatorPort
	notifier  NotifierPort
	retries   RetryPort
	users     UserPort
	audit     AuditPort
	metrics   MetricsPort
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, evaluator EvaluatorPort, notifier NotifierPort, retries RetryPort, users UserPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, evaluator: evaluator, notifier: notifier, retries: retries, users: users, audit: audit, logger: logger}
}

// WithMetrics attaches a transition counter.
func (s *Service) WithMetrics(m MetricsPort) *Service {
	s.metrics = m
	return s
}

// Get fetches one survey by session id.
func (s *Service) Get(ctx context.Context, sessionID string) (Survey, error) {
	return s.repo.Get(ctx, sessionID)
}

// List returns surveys for a project name.
func (s *Service) List(ctx context.Context, project string, limit, offset int) ([]Survey, int, error) {
	return s.repo.List(ctx, strings.TrimSpace(project), limit, offset)
}

// Create registers a new survey in the created status and notifies the
// project's coordinators.
func (s *Service) Create(ctx context.Context, creatorID int64, siteID, project string, assignee *int64) (Survey, error) {
	siteID = strings.TrimSpace(siteID)
	project = strings.TrimSpace(project)
	if siteID == "" || project == "" {
		return Survey{}, fmt.Errorf("surveys: site_id and project required: %w", httpx.ErrValidation)
	}
	if assignee != nil && s.users != nil {
		ok, err := s.users.Exists(ctx, *assignee)
		if err != nil {
			return Survey{}, err
		}
		if !ok {
			return Survey{}, fmt.Errorf("surveys: assignee not found: %w", httpx.ErrNotFound)
		}
	}
	survey, err := s.repo.Create(ctx, Survey{
		SessionID:  uuid.NewString(),
		SiteID:     siteID,
		Project:    project,
		AssignedTo: assignee,
		CreatedBy:  creatorID,
	})
	if err != nil {
		return Survey{}, err
	}
	s.recordAudit(ctx, creatorID, "SURVEY_CREATE", survey.SessionID, map[string]any{"site_id": siteID, "project": project})
	s.dispatch(ctx, notifications.Event{
		Kind:            notifications.EventSurveyCreated,
		SurveySessionID: survey.SessionID,
		ProjectName:     survey.Project,
		ActorID:         creatorID,
	})
	if assignee != nil {
		s.dispatch(ctx, notifications.Event{
			Kind:            notifications.EventAssignment,
			SurveySessionID: survey.SessionID,
			ProjectName:     survey.Project,
			ActorID:         creatorID,
			AssigneeID:      *assignee,
		})
	}
	return survey, nil
}

// EvaluateTransition is the dry-run guard check the UI uses to hide or
// show controls. It never mutates anything.
func (s *Service) EvaluateTransition(ctx context.Context, userID int64, sessionID, target string) (Decision, error) {
	guard, targetStatus, err := GuardFor(target)
	if err != nil {
		return Decision{}, err
	}
	survey, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return Decision{}, err
	}
	_, from, _ := RuleFor(targetStatus)
	if !statusIn(survey.Status, from) {
		return Decision{Reason: fmt.Sprintf("status %s cannot move to %s", survey.Status, targetStatus)}, nil
	}
	allowed, err := s.evaluator.HasTransitionPermission(ctx, userID, guard)
	if err != nil {
		return Decision{}, err
	}
	if !allowed {
		return Decision{Reason: fmt.Sprintf("missing %s permission", guard)}, nil
	}
	return Decision{Allowed: true}, nil
}

// ApplyTransition moves a survey to the target status. The guard is
// evaluated against the acting user; on success the status write is a
// single conditional statement and the fan-out runs afterwards. A failed
// fan-out is logged and queued for redispatch, never rolled back into the
// status change.
func (s *Service) ApplyTransition(ctx context.Context, userID int64, sessionID, target string) (Survey, error) {
	return s.applyTransition(ctx, userID, sessionID, target, notifications.EventStatusChanged)
}

// RequestRework is the explicit review action. It applies the rework
// transition and additionally notifies the project's coordinators and
// approvers that rework was requested.
func (s *Service) RequestRework(ctx context.Context, userID int64, sessionID string) (Survey, error) {
	survey, err := s.applyTransition(ctx, userID, sessionID, string(StatusRework), notifications.EventStatusChanged)
	if err != nil {
		return Survey{}, err
	}
	s.dispatch(ctx, notifications.Event{
		Kind:            notifications.EventReworkRequested,
		SurveySessionID: survey.SessionID,
		ProjectName:     survey.Project,
		ActorID:         userID,
	})
	return survey, nil
}

func (s *Service) applyTransition(ctx context.Context, userID int64, sessionID, target string, kind notifications.EventKind) (Survey, error) {
	guard, targetStatus, err := GuardFor(target)
	if err != nil {
		return Survey{}, err
	}
	allowed, err := s.evaluator.HasTransitionPermission(ctx, userID, guard)
	if err != nil {
		return Survey{}, err
	}
	if !allowed {
		s.recordTransition(targetStatus, "denied")
		return Survey{}, ErrForbidden
	}
	_, from, _ := RuleFor(targetStatus)
	// The update reports the status it replaced, so the event's old/new
	// pair stays exact even when another transition raced this one.
	survey, prior, err := s.repo.UpdateStatus(ctx, sessionID, from, targetStatus)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.recordTransition(targetStatus, "conflict")
		}
		return Survey{}, err
	}
	s.recordTransition(targetStatus, "applied")
	s.recordAudit(ctx, userID, "SURVEY_TRANSITION", survey.SessionID, map[string]any{"from": string(prior), "to": string(targetStatus)})
	ev := notifications.Event{
		Kind:            kind,
		SurveySessionID: survey.SessionID,
		ProjectName:     survey.Project,
		ActorID:         userID,
		OldStatus:       string(prior),
		NewStatus:       string(targetStatus),
	}
	if survey.AssignedTo != nil {
		ev.AssigneeID = *survey.AssignedTo
	}
	s.dispatch(ctx, ev)
	return survey, nil
}

// Assign sets the survey's assignee and notifies them when they are a
// site engineer.
func (s *Service) Assign(ctx context.Context, actorID int64, sessionID string, assigneeID int64) (Survey, error) {
	if s.users != nil {
		ok, err := s.users.Exists(ctx, assigneeID)
		if err != nil {
			return Survey{}, err
		}
		if !ok {
			return Survey{}, fmt.Errorf("surveys: assignee not found: %w", httpx.ErrNotFound)
		}
	}
	survey, err := s.repo.UpdateAssignee(ctx, sessionID, &assigneeID)
	if err != nil {
		return Survey{}, err
	}
	s.recordAudit(ctx, actorID, "SURVEY_ASSIGN", survey.SessionID, map[string]any{"assignee": assigneeID})
	s.dispatch(ctx, notifications.Event{
		Kind:            notifications.EventAssignment,
		SurveySessionID: survey.SessionID,
		ProjectName:     survey.Project,
		ActorID:         actorID,
		AssigneeID:      assigneeID,
	})
	return survey, nil
}

// dispatch runs the fan-out and degrades on failure. The triggering
// mutation already committed; a dispatch error is logged and the event is
// handed to the retry queue.
func (s *Service) dispatch(ctx context.Context, ev notifications.Event) {
	if s.notifier == nil {
		return
	}
	count, err := s.notifier.Dispatch(ctx, ev)
	if err != nil {
		s.logger.Warn("notification dispatch failed",
			slog.String("event", string(ev.Kind)),
			slog.String("survey", ev.SurveySessionID),
			slog.Int("written", count),
			slog.Any("error", err))
		if s.retries != nil {
			if qErr := s.retries.EnqueueRedispatch(ctx, ev); qErr != nil {
				s.logger.Error("redispatch enqueue failed", slog.Any("error", qErr))
			}
		}
		return
	}
	s.logger.Debug("notifications dispatched",
		slog.String("event", string(ev.Kind)),
		slog.String("survey", ev.SurveySessionID),
		slog.Int("count", count))
}

func (s *Service) recordTransition(target Status, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordTransition(string(target), outcome)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, sessionID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "survey",
		EntityID: sessionID,
		Meta:     meta,
	})
}

func statusIn(s Status, set []Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
