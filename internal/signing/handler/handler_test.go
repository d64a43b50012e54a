package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"compliancedesk/internal/signing"
	"compliancedesk/internal/signing/handler/mocks"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/signing-mocks.go -package=mocks Service
type SigningHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  http.Handler
}

func TestSigningHandlerSuite(t *testing.T) {
	suite.Run(t, new(SigningHandlerSuite))
}

func (s *SigningHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *SigningHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func (s *SigningHandlerSuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v))
}

func (s *SigningHandlerSuite) signBody(cid id.CollaboratorID, docs ...id.DocumentID) map[string]any {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.String()
	}
	return map[string]any{
		"collaboratorId":      cid.String(),
		"signerName":          " Mario Rossi ",
		"signerEmail":         "mario@example.com",
		"acceptedDocumentIds": ids,
	}
}

func (s *SigningHandlerSuite) TestSignCreated() {
	cid, doc := id.NewCollaboratorID(), id.NewDocumentID()
	s.service.EXPECT().Sign(gomock.Any(), signing.SignRequest{
		CollaboratorID:      cid,
		SignerName:          "Mario Rossi",
		SignerEmail:         "mario@example.com",
		AcceptedDocumentIDs: []id.DocumentID{doc},
	}).Return(&signing.SignResult{BatchToken: "tok", EmailSentTo: "mario@example.com"}, nil)

	rr := s.do(http.MethodPost, "/sign", s.signBody(cid, doc))

	s.Equal(http.StatusCreated, rr.Code)
	var resp SignResponse
	s.decode(rr, &resp)
	s.Equal("tok", resp.BatchToken)
	s.Equal("mario@example.com", resp.EmailSentTo)
}

func (s *SigningHandlerSuite) TestSignValidation() {
	cases := map[string]map[string]any{
		"missing documents": {"collaboratorId": id.NewCollaboratorID().String(), "signerName": "M", "signerEmail": "m@example.com"},
		"bad collaborator":  {"collaboratorId": "nope", "signerName": "M", "signerEmail": "m@example.com", "acceptedDocumentIds": []string{id.NewDocumentID().String()}},
		"bad document id":   {"collaboratorId": id.NewCollaboratorID().String(), "signerName": "M", "signerEmail": "m@example.com", "acceptedDocumentIds": []string{"x"}},
		"missing name":      {"collaboratorId": id.NewCollaboratorID().String(), "signerEmail": "m@example.com", "acceptedDocumentIds": []string{id.NewDocumentID().String()}},
	}
	for name, body := range cases {
		s.Run(name, func() {
			rr := s.do(http.MethodPost, "/sign", body)
			s.Equal(http.StatusBadRequest, rr.Code)
		})
	}
}

func (s *SigningHandlerSuite) TestSignErrorMapping() {
	cases := []struct {
		err    error
		status int
	}{
		{dErrors.New(dErrors.CodeBadRequest, "document does not belong to collaborator"), http.StatusBadRequest},
		{dErrors.New(dErrors.CodeNotFound, "collaborator not found"), http.StatusNotFound},
		{dErrors.New(dErrors.CodeInvalidState, "document is not awaiting signature"), http.StatusConflict},
		{dErrors.Wrap(errors.New("db down"), dErrors.CodeInternal, "failed"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(string(dErrors.CodeOf(tc.err)), func() {
			s.service.EXPECT().Sign(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			rr := s.do(http.MethodPost, "/sign", s.signBody(id.NewCollaboratorID(), id.NewDocumentID()))
			s.Equal(tc.status, rr.Code)
		})
	}
}

func (s *SigningHandlerSuite) TestSignDispatchFailureCarriesToken() {
	s.service.EXPECT().Sign(gomock.Any(), gomock.Any()).Return(
		&signing.SignResult{BatchToken: "tok"},
		&signing.DispatchError{BatchToken: "tok", Err: errors.New("provider down")})

	rr := s.do(http.MethodPost, "/sign", s.signBody(id.NewCollaboratorID(), id.NewDocumentID()))

	s.Equal(http.StatusBadGateway, rr.Code)
	var resp DispatchFailureResponse
	s.decode(rr, &resp)
	s.Equal("tok", resp.BatchToken)
	s.Equal(string(dErrors.CodeDispatch), resp.Error)
}

func (s *SigningHandlerSuite) TestConfirmSuccess() {
	signedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	s.service.EXPECT().Confirm(gomock.Any(), "ABC-1").Return(&signing.Certificate{
		SignerName:   "Mario Rossi",
		DownloadLink: "https://desk.example.com/certificate?token=tok",
		Documents: []signing.CertificateDocument{
			{Title: "Informativa privacy", SignedAt: signedAt, VerificationCode: "ABC-1", Hash: "h1"},
		},
	}, nil)

	rr := s.do(http.MethodGet, "/confirm?code=ABC-1", nil)

	s.Equal(http.StatusOK, rr.Code)
	var resp ConfirmResponse
	s.decode(rr, &resp)
	s.Equal("Mario Rossi", resp.SignerName)
	s.Require().Len(resp.Documents, 1)
	s.Equal("h1", resp.Documents[0].Hash)
	s.True(resp.Documents[0].SignedAt.Equal(signedAt))
	s.Equal("https://desk.example.com/certificate?token=tok", resp.DownloadLink)
}

func (s *SigningHandlerSuite) TestConfirmFailureMessages() {
	partial := &signing.PartialValidationError{
		Succeeded: []id.EntryID{id.NewEntryID()},
		Failed:    []signing.EntryFailure{{DocumentID: id.NewDocumentID(), Err: errors.New("version conflict")}},
	}
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unknown code", dErrors.New(dErrors.CodeInvalidCode, signing.InvalidLinkMessage), http.StatusNotFound, signing.InvalidLinkMessage},
		{"partial", partial, http.StatusConflict, signing.RetryMessage},
		{"storage", dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "failed to load entries"), http.StatusInternalServerError, signing.RetryMessage},
		{"timeout", dErrors.New(dErrors.CodeTimeout, "lock wait exceeded"), http.StatusGatewayTimeout, signing.RetryMessage},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.service.EXPECT().Confirm(gomock.Any(), "ZZZ").Return(nil, tc.err)
			rr := s.do(http.MethodGet, "/confirm?code=ZZZ", nil)
			s.Equal(tc.status, rr.Code)
			var resp MessageResponse
			s.decode(rr, &resp)
			s.Equal(tc.message, resp.Message)
			s.NotContains(rr.Body.String(), "connection reset")
			if p, ok := tc.err.(*signing.PartialValidationError); ok {
				s.NotContains(rr.Body.String(), p.Failed[0].DocumentID.String())
			}
		})
	}
}

func (s *SigningHandlerSuite) TestResend() {
	s.service.EXPECT().Resend(gomock.Any(), "tok").Return("mario@example.com", nil)
	rr := s.do(http.MethodPost, "/verification/resend", map[string]string{"batchToken": "tok"})
	s.Equal(http.StatusAccepted, rr.Code)

	rr = s.do(http.MethodPost, "/verification/resend", map[string]string{"batchToken": " "})
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *SigningHandlerSuite) TestCertificate() {
	s.service.EXPECT().Certificate(gomock.Any(), "tok").Return(&signing.Certificate{
		BatchToken: "tok",
		SignerName: "Mario Rossi",
		Documents:  []signing.CertificateDocument{{DocumentID: id.NewDocumentID(), Hash: "h", HashVerified: true}},
	}, nil)
	s.service.EXPECT().Certificate(gomock.Any(), "missing").Return(nil, dErrors.New(dErrors.CodeInvalidCode, signing.InvalidLinkMessage))

	rr := s.do(http.MethodGet, "/certificate?token=tok", nil)
	s.Equal(http.StatusOK, rr.Code)
	var resp CertificateResponse
	s.decode(rr, &resp)
	s.Require().Len(resp.Documents, 1)
	s.True(resp.Documents[0].HashVerified)

	rr = s.do(http.MethodGet, "/certificate?token=missing", nil)
	s.Equal(http.StatusNotFound, rr.Code)
}
