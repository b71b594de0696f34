package surveys

import (
	"fmt"
	"time"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
)

// Status is the canonical survey status vocabulary. Earlier clients sent
// "review" and "done"; those spellings are normalized to under_revision
// and approved at the API boundary and never stored.
type Status string

const (
	StatusCreated       Status = "created"
	StatusSubmitted     Status = "submitted"
	StatusUnderRevision Status = "under_revision"
	StatusRework        Status = "rework"
	StatusApproved      Status = "approved"
)

// ParseStatus normalizes a caller-supplied status string, accepting the
// legacy spellings.
func ParseStatus(raw string) (Status, error) {
	switch raw {
	case "created":
		return StatusCreated, nil
	case "submitted":
		return StatusSubmitted, nil
	case "under_revision", "review":
		return StatusUnderRevision, nil
	case "rework":
		return StatusRework, nil
	case "approved", "done":
		return StatusApproved, nil
	}
	return "", fmt.Errorf("surveys: unknown status %q: %w", raw, httpx.ErrValidation)
}

// transitionRule pairs a target status with the permission guarding it and
// the statuses it may be reached from. Rework loops back to an editable
// state, so a reworked survey resubmits through the same guard as a fresh
// one.
type transitionRule struct {
	guard roles.Transition
	from  []Status
}

var transitionRules = map[Status]transitionRule{
	StatusSubmitted:     {guard: roles.TransitionCreatedToSubmitted, from: []Status{StatusCreated, StatusRework}},
	StatusUnderRevision: {guard: roles.TransitionSubmittedToUnderRevision, from: []Status{StatusSubmitted}},
	StatusRework:        {guard: roles.TransitionUnderRevisionToRework, from: []Status{StatusUnderRevision}},
	StatusApproved:      {guard: roles.TransitionUnderRevisionToApproved, from: []Status{StatusUnderRevision}},
}

// RuleFor returns the permission guard and allowed source statuses for a
// target status. Targets with no inbound transition (created) report ok
// false.
func RuleFor(target Status) (roles.Transition, []Status, bool) {
	rule, ok := transitionRules[target]
	if !ok {
		return "", nil, false
	}
	return rule.guard, rule.from, true
}

// GuardFor resolves a caller-supplied value that may be either a target
// status or a transition name into the (guard, target) pair.
func GuardFor(raw string) (roles.Transition, Status, error) {
	for _, t := range roles.Transitions() {
		if string(t) == raw {
			return t, targetOf(t), nil
		}
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return "", "", err
	}
	rule, ok := transitionRules[status]
	if !ok {
		return "", "", fmt.Errorf("surveys: status %q is not a reachable target: %w", raw, httpx.ErrValidation)
	}
	return rule.guard, status, nil
}

func targetOf(t roles.Transition) Status {
	switch t {
	case roles.TransitionCreatedToSubmitted:
		return StatusSubmitted
	case roles.TransitionSubmittedToUnderRevision:
		return StatusUnderRevision
	case roles.TransitionUnderRevisionToRework:
		return StatusRework
	default:
		return StatusApproved
	}
}

// Survey is one site survey record. Status is mutated only through the
// workflow service so every change passes its guard and fans out
// notifications.
type Survey struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	SiteID     string    `json:"site_id"`
	Project    string    `json:"project"`
	Status     Status    `json:"status"`
	AssignedTo *int64    `json:"assigned_to,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decision is the outcome of a dry-run transition evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Domain errors.
var (
	ErrNotFound          = fmt.Errorf("surveys: survey not found: %w", httpx.ErrNotFound)
	ErrForbidden         = fmt.Errorf("surveys: transition not permitted: %w", httpx.ErrForbidden)
	ErrInvalidTransition = fmt.Errorf("surveys: status does not allow this transition: %w", httpx.ErrValidation)
)
