package roles

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
)

// Well-known role names referenced by the notification audience rules.
const (
	NameAdmin          = "admin"
	NameCoordinator    = "coordinator"
	NameApprover       = "approver"
	NameSurveyEngineer = "survey_engineer"
	NameSiteEngineer   = "site_engineer"
)

// Transition names a guarded survey status change in a permission document.
type Transition string

const (
	TransitionCreatedToSubmitted       Transition = "created_to_submitted"
	TransitionSubmittedToUnderRevision Transition = "submitted_to_under_revision"
	TransitionUnderRevisionToRework    Transition = "under_revision_to_rework"
	TransitionUnderRevisionToApproved  Transition = "under_revision_to_approved"
)

// Transitions lists every recognized transition name.
func Transitions() []Transition {
	return []Transition{
		TransitionCreatedToSubmitted,
		TransitionSubmittedToUnderRevision,
		TransitionUnderRevisionToRework,
		TransitionUnderRevisionToApproved,
	}
}

// AccessLevel is the tri-state capability for a status-scoped resource.
type AccessLevel string

const (
	AccessNone AccessLevel = "none"
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

// ordinal orders access levels: none < view < edit. The zero value counts
// as none so absent keys fail closed.
func (l AccessLevel) ordinal() int {
	switch l {
	case AccessView:
		return 1
	case AccessEdit:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether l grants at least the other level.
func (l AccessLevel) AtLeast(other AccessLevel) bool {
	return l.ordinal() >= other.ordinal()
}

// Max returns the higher of two access levels in canonical form.
func (l AccessLevel) Max(other AccessLevel) AccessLevel {
	if other.ordinal() > l.ordinal() {
		return other.canonical()
	}
	return l.canonical()
}

func (l AccessLevel) canonical() AccessLevel {
	switch l.ordinal() {
	case 2:
		return AccessEdit
	case 1:
		return AccessView
	default:
		return AccessNone
	}
}

func (l AccessLevel) valid() bool {
	switch l {
	case AccessNone, AccessView, AccessEdit, "":
		return true
	}
	return false
}

// SiteStatusPermissions holds the transition guard flags of a role.
type SiteStatusPermissions struct {
	CreatedToSubmitted       bool `json:"created_to_submitted"`
	SubmittedToUnderRevision bool `json:"submitted_to_under_revision"`
	UnderRevisionToRework    bool `json:"under_revision_to_rework"`
	UnderRevisionToApproved  bool `json:"under_revision_to_approved"`
}

// SiteAccessPermissions holds the per-status access levels of a role.
type SiteAccessPermissions struct {
	CreatedStatus       AccessLevel `json:"created_status"`
	ReworkStatus        AccessLevel `json:"rework_status"`
	SubmittedStatus     AccessLevel `json:"submitted_status"`
	UnderRevisionStatus AccessLevel `json:"under_revision_status"`
	ApprovedStatus      AccessLevel `json:"approved_status"`
}

// PermissionDocument is the structured permission payload owned by a role.
// Explicit fields, not an open dictionary, so malformed definitions are
// rejected when the role is written rather than when it is evaluated.
type PermissionDocument struct {
	SiteStatus SiteStatusPermissions `json:"site_status"`
	SiteAccess SiteAccessPermissions `json:"site_access"`
}

// Validate rejects unknown access level values.
func (d PermissionDocument) Validate() error {
	fields := map[string]AccessLevel{
		"created_status":        d.SiteAccess.CreatedStatus,
		"rework_status":         d.SiteAccess.ReworkStatus,
		"submitted_status":      d.SiteAccess.SubmittedStatus,
		"under_revision_status": d.SiteAccess.UnderRevisionStatus,
		"approved_status":       d.SiteAccess.ApprovedStatus,
	}
	for name, level := range fields {
		if !level.valid() {
			return fmt.Errorf("roles: site_access.%s has unknown level %q: %w", name, level, httpx.ErrValidation)
		}
	}
	return nil
}

// Allows reports whether the document grants the named transition.
// Unrecognized names are denied.
func (d PermissionDocument) Allows(t Transition) bool {
	switch t {
	case TransitionCreatedToSubmitted:
		return d.SiteStatus.CreatedToSubmitted
	case TransitionSubmittedToUnderRevision:
		return d.SiteStatus.SubmittedToUnderRevision
	case TransitionUnderRevisionToRework:
		return d.SiteStatus.UnderRevisionToRework
	case TransitionUnderRevisionToApproved:
		return d.SiteStatus.UnderRevisionToApproved
	}
	return false
}

// Access returns the access level the document grants for a stored survey
// status name. Unrecognized names map to none.
func (d PermissionDocument) Access(status string) AccessLevel {
	switch status {
	case "created":
		return d.SiteAccess.CreatedStatus.canonical()
	case "rework":
		return d.SiteAccess.ReworkStatus.canonical()
	case "submitted":
		return d.SiteAccess.SubmittedStatus.canonical()
	case "under_revision":
		return d.SiteAccess.UnderRevisionStatus.canonical()
	case "approved":
		return d.SiteAccess.ApprovedStatus.canonical()
	}
	return AccessNone
}

// Role bundles a named permission document.
type Role struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Permissions PermissionDocument `json:"permissions"`
	IsActive    bool               `json:"is_active"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Domain errors. All wrap the httpx taxonomy for uniform HTTP mapping.
var (
	ErrNotFound  = fmt.Errorf("roles: role not found: %w", httpx.ErrNotFound)
	ErrDuplicate = fmt.Errorf("roles: role name already exists: %w", httpx.ErrDuplicate)
	ErrInactive  = fmt.Errorf("roles: role is inactive: %w", httpx.ErrValidation)
)
