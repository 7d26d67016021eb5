package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "seriosity/pkg/domain"
	"seriosity/pkg/requestcontext"
)

// JWTValidator turns a bearer token into an authenticated actor.
type JWTValidator interface {
	ValidateToken(tokenString string) (requestcontext.AuthenticatedActor, error)
}

// Claims are the token claims the marketplace front end mints. Subject is the
// user's UUID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HMACValidator validates HS256 tokens signed with a shared key.
type HMACValidator struct {
	key    []byte
	issuer string
}

// NewHMACValidator builds a validator. An empty issuer skips the iss check.
func NewHMACValidator(signingKey, issuer string) *HMACValidator {
	return &HMACValidator{key: []byte(signingKey), issuer: issuer}
}

func (v *HMACValidator) ValidateToken(tokenString string) (requestcontext.AuthenticatedActor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, opts...); err != nil {
		return requestcontext.AuthenticatedActor{}, fmt.Errorf("parse token: %w", err)
	}

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return requestcontext.AuthenticatedActor{}, fmt.Errorf("token subject: %w", err)
	}
	role := requestcontext.Role(claims.Role)
	switch role {
	case requestcontext.RoleTenant, requestcontext.RoleLandlord, requestcontext.RoleOperator:
	default:
		return requestcontext.AuthenticatedActor{}, errors.New("token role is not recognised")
	}
	return requestcontext.AuthenticatedActor{UserID: userID, Role: role}, nil
}

// Sign mints a token for the given actor. Used by the operator CLI and tests.
func (v *HMACValidator) Sign(actor requestcontext.AuthenticatedActor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// resolved actor in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
