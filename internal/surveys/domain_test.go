package surveys

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telesite/telesite/internal/platform/httpx"
	"github.com/telesite/telesite/internal/roles"
)

func TestParseStatusNormalizesLegacySpellings(t *testing.T) {
	cases := map[string]Status{
		"created":        StatusCreated,
		"submitted":      StatusSubmitted,
		"under_revision": StatusUnderRevision,
		"review":         StatusUnderRevision,
		"rework":         StatusRework,
		"approved":       StatusApproved,
		"done":           StatusApproved,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := ParseStatus("archived")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGuardForAcceptsBothVocabularies(t *testing.T) {
	guard, target, err := GuardFor("submitted")
	require.NoError(t, err)
	require.Equal(t, roles.TransitionCreatedToSubmitted, guard)
	require.Equal(t, StatusSubmitted, target)

	guard, target, err = GuardFor("under_revision_to_approved")
	require.NoError(t, err)
	require.Equal(t, roles.TransitionUnderRevisionToApproved, guard)
	require.Equal(t, StatusApproved, target)

	guard, target, err = GuardFor("done")
	require.NoError(t, err)
	require.Equal(t, roles.TransitionUnderRevisionToApproved, guard)
	require.Equal(t, StatusApproved, target)

	// created has no inbound transition.
	_, _, err = GuardFor("created")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, _, err = GuardFor("bogus")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestReworkResubmitsThroughTheSameGuard(t *testing.T) {
	guard, from, ok := RuleFor(StatusSubmitted)
	require.True(t, ok)
	require.Equal(t, roles.TransitionCreatedToSubmitted, guard)
	require.ElementsMatch(t, []Status{StatusCreated, StatusRework}, from)
}
