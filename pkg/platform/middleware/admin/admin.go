// Package admin guards the back-office routes with a shared token whose
// bcrypt hash is configured on the server.
package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/httputil"
	"compliancedesk/pkg/requestcontext"
)

// TokenHeader carries the admin token.
const TokenHeader = "X-Admin-Token"

// Actor is recorded on audit entries written by admin requests.
const Actor = "admin"

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// hash. An empty hash disables the check, for local development only.
func RequireAdminToken(hash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if hash != "" {
				token := r.Header.Get(TokenHeader)
				if token == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
					logger.WarnContext(ctx, "admin token mismatch",
						"request_id", requestcontext.RequestID(ctx),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, Actor)))
		})
	}
}
