package roles

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telesite/telesite/internal/platform/httpx"
)

func TestAccessLevelOrdering(t *testing.T) {
	require.True(t, AccessEdit.AtLeast(AccessView))
	require.True(t, AccessView.AtLeast(AccessNone))
	require.False(t, AccessNone.AtLeast(AccessView))
	require.True(t, AccessLevel("").AtLeast(AccessNone))

	require.Equal(t, AccessEdit, AccessView.Max(AccessEdit))
	require.Equal(t, AccessView, AccessView.Max(AccessNone))
	// The zero value canonicalizes to none.
	require.Equal(t, AccessNone, AccessLevel("").Max(AccessLevel("")))
}

func TestPermissionDocumentFailsClosed(t *testing.T) {
	var doc PermissionDocument
	for _, tr := range Transitions() {
		require.False(t, doc.Allows(tr))
	}
	require.False(t, doc.Allows(Transition("made_up_transition")))
	require.Equal(t, AccessNone, doc.Access("created"))
	require.Equal(t, AccessNone, doc.Access("made_up_status"))
}

func TestPermissionDocumentValidateRejectsUnknownLevels(t *testing.T) {
	doc := PermissionDocument{
		SiteAccess: SiteAccessPermissions{CreatedStatus: AccessLevel("write")},
	}
	require.ErrorIs(t, doc.Validate(), httpx.ErrValidation)

	doc.SiteAccess.CreatedStatus = AccessEdit
	require.NoError(t, doc.Validate())

	// Absent keys are valid and deny.
	require.NoError(t, PermissionDocument{}.Validate())
}

func TestPermissionDocumentJSONShape(t *testing.T) {
	doc := PermissionDocument{
		SiteStatus: SiteStatusPermissions{CreatedToSubmitted: true},
		SiteAccess: SiteAccessPermissions{ReworkStatus: AccessEdit},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, true, decoded["site_status"]["created_to_submitted"])
	require.Equal(t, "edit", decoded["site_access"]["rework_status"])

	// Malformed payloads are caught when the role is written.
	var malformed PermissionDocument
	require.NoError(t, json.Unmarshal([]byte(`{"site_access":{"created_status":"admin"}}`), &malformed))
	require.ErrorIs(t, malformed.Validate(), httpx.ErrValidation)
}
