package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliancedesk/internal/blob"
	collabmodels "compliancedesk/internal/collaborator/models"
	collabstore "compliancedesk/internal/collaborator/store"
	"compliancedesk/internal/document/models"
	"compliancedesk/internal/document/store"
	"compliancedesk/internal/render"
	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/audit/publishers/compliance"
	auditmemory "compliancedesk/pkg/platform/audit/store/memory"
	"compliancedesk/pkg/platform/tx"
	"compliancedesk/pkg/requestcontext"
)

type GenerateSuite struct {
	suite.Suite
	ctx           context.Context
	collaborators *collabstore.InMemory
	documents     *store.InMemory
	blobs         *blob.MemoryStore
	auditStore    *auditmemory.InMemoryStore
	service       *Service
}

func TestGenerateSuite(t *testing.T) {
	suite.Run(t, new(GenerateSuite))
}

func (s *GenerateSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC))
	s.collaborators = collabstore.NewInMemory()
	s.documents = store.NewInMemory()
	s.blobs = blob.NewMemoryStore("https://files.example.com")
	s.auditStore = auditmemory.NewInMemoryStore()

	renderer, err := render.NewHTMLRenderer()
	s.Require().NoError(err)
	s.service = New(s.documents, s.collaborators, renderer, s.blobs,
		compliance.New(s.auditStore), tx.NewShardedRunner())
}

func (s *GenerateSuite) createCollaborator(contractType string) *collabmodels.Collaborator {
	c, err := collabmodels.NewCollaborator(id.NewCollaboratorID(), collabmodels.Intake{
		FirstName: "Mario", LastName: "Rossi", Email: "mario@example.com", ContractType: contractType,
		TaxCode: "RSSMRA80A01H501Z", VATNumber: "12345678901",
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.collaborators.Create(s.ctx, c))
	return c
}

func kindsOf(docs []*models.Document) []models.Kind {
	out := make([]models.Kind, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Kind)
	}
	return out
}

func (s *GenerateSuite) TestOccasionalCollaborator() {
	c := s.createCollaborator("occasional")

	docs, err := s.service.Generate(s.ctx, c.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]models.Kind{models.KindPrivacy, models.KindIndependence, models.KindContractOccasional}, kindsOf(docs))

	for _, d := range docs {
		s.Equal(models.StateToSign, d.State)
		s.NotEmpty(d.ContentURL)
		obj, err := s.blobs.Get(s.ctx, d.ContentRef)
		s.Require().NoError(err)
		s.Contains(string(obj.Data), "Mario Rossi")
	}
	s.Equal(3, s.auditStore.CountByAction(audit.ActionDocumentGenerated))
}

func (s *GenerateSuite) TestGenerateIsIdempotentByKind() {
	c := s.createCollaborator("vat-registered")

	first, err := s.service.Generate(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(first, 4)

	second, err := s.service.Generate(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(second, 4)
	s.Equal(4, s.auditStore.CountByAction(audit.ActionDocumentGenerated))
}

func (s *GenerateSuite) TestUnknownContractTypeKeepsUniversalDocuments() {
	c := s.createCollaborator("occasional")
	legacy := *c
	legacy.ContractType = id.ContractType("apprentice")
	s.Require().NoError(s.collaborators.Update(s.ctx, &legacy))

	docs, err := s.service.Generate(s.ctx, c.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))
	s.ElementsMatch([]models.Kind{models.KindPrivacy, models.KindIndependence}, kindsOf(docs))
}

func (s *GenerateSuite) TestUnknownCollaborator() {
	_, err := s.service.Generate(s.ctx, id.NewCollaboratorID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type missingTemplates struct{}

func (missingTemplates) Render(context.Context, string, map[string]any) (render.Artifact, error) {
	return render.Artifact{}, render.ErrTemplateNotFound
}

func (s *GenerateSuite) TestMissingTemplateIsConfigurationError() {
	c := s.createCollaborator("occasional")
	svc := New(s.documents, s.collaborators, missingTemplates{}, s.blobs,
		compliance.New(s.auditStore), tx.NewShardedRunner())

	_, err := svc.Generate(s.ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConfiguration))

	docs, err := s.documents.ListByCollaborator(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Empty(docs)
}

func (s *GenerateSuite) TestGetUnknownDocument() {
	_, err := s.service.Get(s.ctx, id.NewDocumentID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
