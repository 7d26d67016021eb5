package testutil

import (
	"net/http"

	id "seriosity/pkg/domain"
	"seriosity/pkg/requestcontext"
)

// WithActor simulates what the auth middleware does for authenticated
// requests.
func WithActor(req *http.Request, userID id.UserID, role requestcontext.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.AuthenticatedActor{UserID: userID, Role: role})
	return req.WithContext(ctx)
}

// AsTenant is WithActor for the tenant side.
func AsTenant(req *http.Request, tenantID id.TenantID) *http.Request {
	return WithActor(req, id.UserID(tenantID), requestcontext.RoleTenant)
}

// AsLandlord is WithActor for the landlord side.
func AsLandlord(req *http.Request, landlordID id.LandlordID) *http.Request {
	return WithActor(req, id.UserID(landlordID), requestcontext.RoleLandlord)
}
