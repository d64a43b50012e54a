package testutil

import (
	"net/http"
	"time"

	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/requestcontext"
)

// WithPortalCollaborator marks the request as authenticated by a portal link
// for the given collaborator, as the portal middleware would.
func WithPortalCollaborator(req *http.Request, collaboratorID id.CollaboratorID) *http.Request {
	ctx := requestcontext.WithCollaboratorID(req.Context(), collaboratorID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithActor sets the audit actor on the request.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}
