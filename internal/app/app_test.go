package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	collabhandler "compliancedesk/internal/collaborator/handler"
	"compliancedesk/internal/notify"
	"compliancedesk/internal/platform/config"
	signinghandler "compliancedesk/internal/signing/handler"
	"compliancedesk/pkg/platform/middleware/admin"
	"compliancedesk/pkg/testutil"
)

const adminToken = "s3cret-admin"

func newTestApp(t *testing.T) (*App, *notify.Recorder) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Defaults()
	cfg.PublicBaseURL = "https://desk.example.com"
	cfg.Security.AdminTokenHash = string(hash)

	recorder := notify.NewRecorder()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, logger, WithDispatcher(recorder))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, recorder
}

func adminRequest(t *testing.T, method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(t, method, path, body)
	req.Header.Set(admin.TokenHeader, adminToken)
	return req
}

func TestSigningJourney(t *testing.T) {
	a, recorder := newTestApp(t)

	var (
		intake     *collabhandler.IntakeResponse
		portalTok  string
		acceptIDs  []string
		batchToken string
		code       string
	)

	testutil.Given(t, "an admin registers a vat-registered collaborator", func(t *testing.T) {
		rr := testutil.DoRequest(a.Router, adminRequest(t, http.MethodPost, "/admin/collaborators", map[string]any{
			"firstName":    "Giulia",
			"lastName":     "Verdi",
			"email":        "giulia.verdi@example.com",
			"contractType": "vat-registered",
			"vatNumber":    "IT01234567890",
		}))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		intake = testutil.UnmarshalResponse[collabhandler.IntakeResponse](t, rr)
		require.NotEmpty(t, intake.Documents)
		assert.True(t, intake.EmailSent)
		assert.Len(t, recorder.Sent(notify.KindDocumentsReady), 1)

		link, err := url.Parse(intake.PortalLink)
		require.NoError(t, err)
		portalTok = link.Query().Get("token")
		require.NotEmpty(t, portalTok)
	})

	testutil.When(t, "the collaborator opens the portal", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodGet, "/portal/documents", nil)
		req.Header.Set("Authorization", "Bearer "+portalTok)
		rr := testutil.DoRequest(a.Router, req)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		res := testutil.UnmarshalResponse[collabhandler.PortalDocumentsResponse](t, rr)
		for _, d := range res.Documents {
			if d.State == "to_sign" {
				acceptIDs = append(acceptIDs, d.ID)
			}
		}
		require.NotEmpty(t, acceptIDs)
	})

	testutil.And(t, "signs every pending document", func(t *testing.T) {
		rr := testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodPost, "/sign", map[string]any{
			"collaboratorId":      intake.Collaborator.ID,
			"signerName":          "Giulia Verdi",
			"signerEmail":         "giulia.verdi@example.com",
			"acceptedDocumentIds": acceptIDs,
		}))
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[signinghandler.SignResponse](t, rr)
		batchToken = res.BatchToken

		sent := recorder.Sent(notify.KindVerification)
		require.Len(t, sent, 1)
		code, _ = sent[0].Data["VerificationCode"].(string)
		require.NotEmpty(t, code)
	})

	testutil.And(t, "follows the verification link", func(t *testing.T) {
		rr := testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodGet, "/confirm?code="+code, nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[signinghandler.ConfirmResponse](t, rr)
		assert.Equal(t, "Giulia Verdi", res.SignerName)
		assert.Len(t, res.Documents, len(acceptIDs))
		assert.Equal(t, "https://desk.example.com/certificate?token="+batchToken, res.DownloadLink)
	})

	testutil.Then(t, "the certificate verifies every signed document", func(t *testing.T) {
		rr := testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodGet, "/certificate?token="+batchToken, nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[signinghandler.CertificateResponse](t, rr)
		require.Len(t, res.Documents, len(acceptIDs))
		for _, d := range res.Documents {
			assert.True(t, d.HashVerified, d.Title)
		}
		assert.Len(t, recorder.Sent(notify.KindDocumentsCompleted), 1)
	})

	testutil.And(t, "the admin dashboard shows the collaborator as compliant", func(t *testing.T) {
		rr := testutil.DoRequest(a.Router, adminRequest(t, http.MethodGet, "/admin/collaborators/"+intake.Collaborator.ID, nil))
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		res := testutil.UnmarshalResponse[collabhandler.DetailResponse](t, rr)
		for _, d := range res.Documents {
			assert.NotEqual(t, "to_sign", d.State, d.Title)
		}
	})
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a, _ := newTestApp(t)

	rr := testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodGet, "/admin/collaborators", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = testutil.DoRequest(a.Router, adminRequest(t, http.MethodGet, "/admin/collaborators", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	a, _ := newTestApp(t)

	rr := testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = testutil.DoRequest(a.Router, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
