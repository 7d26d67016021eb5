package requestid

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"seriosity/pkg/requestcontext"
)

// Header carries the correlation ID between services.
const Header = "X-Request-ID"

const maxInboundLength = 128

// Middleware propagates an inbound X-Request-ID or mints a new one, stores it
// in the context and echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(Header))
		if reqID == "" || len(reqID) > maxInboundLength {
			reqID = uuid.NewString()
		}
		w.Header().Set(Header, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
