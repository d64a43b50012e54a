// Package auth authenticates collaborators arriving through a signed portal link.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	"compliancedesk/pkg/platform/httputil"
	"compliancedesk/pkg/requestcontext"
)

// PortalValidator checks a portal token and returns the collaborator it was
// issued for.
type PortalValidator interface {
	Validate(token string) (id.CollaboratorID, error)
}

// TokenQueryParam is the query parameter portal links carry.
const TokenQueryParam = "token"

// RequirePortalToken accepts "Authorization: Bearer <token>" or ?token= and
// stores the collaborator id in the context.
func RequirePortalToken(validator PortalValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := tokenFrom(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized portal access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "portal token required"))
				return
			}
			collaboratorID, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized portal access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired portal link"))
				return
			}

			ctx = requestcontext.WithCollaboratorID(ctx, collaboratorID)
			ctx = requestcontext.WithActor(ctx, "collaborator:"+collaboratorID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFrom(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return r.URL.Query().Get(TokenQueryParam)
}
