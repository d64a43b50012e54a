package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/requestcontext"
)

type stubValidator struct {
	token string
	id    id.CollaboratorID
}

func (s stubValidator) Validate(token string) (id.CollaboratorID, error) {
	if token != s.token {
		return id.CollaboratorID{}, errors.New("bad token")
	}
	return s.id, nil
}

func TestRequirePortalToken(t *testing.T) {
	cid := id.NewCollaboratorID()
	var seen id.CollaboratorID
	h := RequirePortalToken(stubValidator{token: "good", id: cid}, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = requestcontext.CollaboratorID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/portal/documents", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, cid, seen)
	})

	t.Run("query parameter", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/portal/documents?token=good", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/portal/documents?token=forged", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/portal/documents", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
