package rbac

import "github.com/telesite/telesite/internal/roles"

// Pure aggregation over permission documents. The same role set always
// yields the same answer, which keeps these testable without a store.
//
// All functions fail closed: an empty document slice grants nothing.

// TransitionAllowed reports whether any document grants the transition.
func TransitionAllowed(docs []roles.PermissionDocument, t roles.Transition) bool {
	for _, doc := range docs {
		if doc.Allows(t) {
			return true
		}
	}
	return false
}

// MaxAccess returns the highest access level any document grants for the
// stored status name, defaulting to none.
func MaxAccess(docs []roles.PermissionDocument, status string) roles.AccessLevel {
	level := roles.AccessNone
	for _, doc := range docs {
		level = level.Max(doc.Access(status))
	}
	return level
}

// Merge folds a set of documents into one effective document: transition
// flags are OR'd, access levels take the maximum.
func Merge(docs []roles.PermissionDocument) roles.PermissionDocument {
	var merged roles.PermissionDocument
	for _, doc := range docs {
		merged.SiteStatus.CreatedToSubmitted = merged.SiteStatus.CreatedToSubmitted || doc.SiteStatus.CreatedToSubmitted
		merged.SiteStatus.SubmittedToUnderRevision = merged.SiteStatus.SubmittedToUnderRevision || doc.SiteStatus.SubmittedToUnderRevision
		merged.SiteStatus.UnderRevisionToRework = merged.SiteStatus.UnderRevisionToRework || doc.SiteStatus.UnderRevisionToRework
		merged.SiteStatus.UnderRevisionToApproved = merged.SiteStatus.UnderRevisionToApproved || doc.SiteStatus.UnderRevisionToApproved

		merged.SiteAccess.CreatedStatus = merged.SiteAccess.CreatedStatus.Max(doc.SiteAccess.CreatedStatus)
		merged.SiteAccess.ReworkStatus = merged.SiteAccess.ReworkStatus.Max(doc.SiteAccess.ReworkStatus)
		merged.SiteAccess.SubmittedStatus = merged.SiteAccess.SubmittedStatus.Max(doc.SiteAccess.SubmittedStatus)
		merged.SiteAccess.UnderRevisionStatus = merged.SiteAccess.UnderRevisionStatus.Max(doc.SiteAccess.UnderRevisionStatus)
		merged.SiteAccess.ApprovedStatus = merged.SiteAccess.ApprovedStatus.Max(doc.SiteAccess.ApprovedStatus)
	}
	// Canonicalize zero values so an empty role set serializes as "none".
	merged.SiteAccess.CreatedStatus = merged.SiteAccess.CreatedStatus.Max(roles.AccessNone)
	merged.SiteAccess.ReworkStatus = merged.SiteAccess.ReworkStatus.Max(roles.AccessNone)
	merged.SiteAccess.SubmittedStatus = merged.SiteAccess.SubmittedStatus.Max(roles.AccessNone)
	merged.SiteAccess.UnderRevisionStatus = merged.SiteAccess.UnderRevisionStatus.Max(roles.AccessNone)
	merged.SiteAccess.ApprovedStatus = merged.SiteAccess.ApprovedStatus.Max(roles.AccessNone)
	return merged
}
