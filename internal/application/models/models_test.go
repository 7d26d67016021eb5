package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name       string
		interested bool
		decision   Decision
		want       Status
		exists     bool
	}{
		{"no signals", false, DecisionNone, "", false},
		{"interest only", true, DecisionNone, StatusPending, true},
		{"approval only", false, DecisionApproved, StatusApproved, true},
		{"mutual interest", true, DecisionApproved, StatusChatOpen, true},
		{"rejected without interest", false, DecisionRejected, StatusRejected, true},
		{"rejection overrides interest", true, DecisionRejected, StatusRejected, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exists := Derive(tt.interested, tt.decision)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.exists, exists)
		})
	}
}

func TestApplicationTransitions(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	app := NewApplication(id.NewPropertyID(), id.NewTenantID(), id.NewLandlordID(), now)

	require.True(t, app.RecordInterest(now))
	assert.Equal(t, StatusPending, app.Status)
	assert.False(t, app.RecordInterest(now.Add(time.Hour)), "second like keeps the first timestamp")
	assert.Equal(t, now, *app.TenantInterestedAt)

	changed, err := app.Decide(DecisionApproved, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusChatOpen, app.Status)

	changed, err = app.Decide(DecisionRejected, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusRejected, app.Status)
	assert.Equal(t, now.Add(3*time.Hour), *app.LandlordDecidedAt)

	changed, err = app.Decide(DecisionRejected, now.Add(4*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = app.Decide(DecisionApproved, now.Add(5*time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	assert.Equal(t, StatusRejected, app.Status)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, DecisionApproved, d)

	_, err = ParseDecision("none")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
