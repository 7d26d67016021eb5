package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriosity/internal/evidence/models"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
)

func TestReconcile(t *testing.T) {
	ev := models.NewTenantEvidence(id.NewTenantID())
	ev.IdentityVerified = true
	ev.Version = 4
	current := mustCompute(t, *ev)

	t.Run("matching score passes", func(t *testing.T) {
		require.NoError(t, Reconcile(*ev, StoredScore{Breakdown: current, EvidenceVersion: 4}))
	})

	t.Run("stale score is reported", func(t *testing.T) {
		err := Reconcile(*ev, StoredScore{Breakdown: current, EvidenceVersion: 3})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("drifted breakdown is reported", func(t *testing.T) {
		drifted, err := NewBreakdown(Components{IDVerified: 15, References: 5})
		require.NoError(t, err)
		err = Reconcile(*ev, StoredScore{Breakdown: drifted, EvidenceVersion: 4})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
