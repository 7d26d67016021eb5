package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "seriosity/pkg/domain"
	"seriosity/pkg/requestcontext"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHMACValidator_RoundTrip(t *testing.T) {
	v := NewHMACValidator("test-key", "seriosity")
	actor := requestcontext.AuthenticatedActor{UserID: id.UserID(uuid.New()), Role: requestcontext.RoleLandlord}

	token, err := v.Sign(actor, time.Minute)
	require.NoError(t, err)

	got, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestHMACValidator_Rejects(t *testing.T) {
	v := NewHMACValidator("test-key", "seriosity")
	actor := requestcontext.AuthenticatedActor{UserID: id.UserID(uuid.New()), Role: requestcontext.RoleTenant}

	t.Run("expired token", func(t *testing.T) {
		token, err := v.Sign(actor, -time.Minute)
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("token signed with another key", func(t *testing.T) {
		token, err := NewHMACValidator("other-key", "seriosity").Sign(actor, time.Minute)
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		token, err := v.Sign(requestcontext.AuthenticatedActor{UserID: actor.UserID, Role: "admin"}, time.Minute)
		require.NoError(t, err)
		_, err = v.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestRequireAuth(t *testing.T) {
	v := NewHMACValidator("test-key", "")
	actor := requestcontext.AuthenticatedActor{UserID: id.UserID(uuid.New()), Role: requestcontext.RoleTenant}

	var seen requestcontext.AuthenticatedActor
	h := RequireAuth(v, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header is unauthorized", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token stores actor", func(t *testing.T) {
		token, err := v.Sign(actor, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, actor, seen)
	})
}
