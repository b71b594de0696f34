package notifications

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
)

// Type classifies a notification row.
type Type string

const (
	TypeSurveyCreated Type = "survey_created"
	TypeStatusChange  Type = "status_change"
	TypeAssignment    Type = "assignment"
	TypeRework        Type = "rework"
	TypeApproval      Type = "approval"
)

// Notification is one message addressed to one recipient. Rows are created
// only by the dispatcher, in bulk, and pruned after the retention window.
type Notification struct {
	ID               int64      `json:"id"`
	UserID           int64      `json:"user_id"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	Type             Type       `json:"type"`
	RelatedSurveyID  string     `json:"related_survey_id"`
	RelatedProjectID *int64     `json:"related_project_id,omitempty"`
	IsRead           bool       `json:"is_read"`
	CreatedAt        time.Time  `json:"created_at"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
}

// EventKind names a workflow event the dispatcher fans out.
type EventKind string

const (
	EventSurveyCreated   EventKind = "survey_created"
	EventStatusChanged   EventKind = "status_changed"
	EventAssignment      EventKind = "assignment"
	EventReworkRequested EventKind = "rework_requested"
)

// Event is the payload of a workflow event. It is JSON-serializable so a
// failed fan-out can be re-enqueued and re-dispatched as-is; dispatching
// the same event twice only risks a duplicate notification, never an
// inconsistent one.
type Event struct {
	Kind            EventKind `json:"kind"`
	SurveySessionID string    `json:"survey_session_id"`
	ProjectName     string    `json:"project_name"`
	ActorID         int64     `json:"actor_id"`
	AssigneeID      int64     `json:"assignee_id,omitempty"`
	OldStatus       string    `json:"old_status,omitempty"`
	NewStatus       string    `json:"new_status,omitempty"`
}

// Domain errors.
var (
	ErrNotFound     = fmt.Errorf("notifications: notification not found: %w", httpx.ErrNotFound)
	ErrUnknownEvent = fmt.Errorf("notifications: unknown event kind: %w", httpx.ErrValidation)
)
