package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"compliancedesk/internal/document/models"
	id "compliancedesk/pkg/domain"
	"compliancedesk/pkg/platform/sentinel"
	"compliancedesk/pkg/platform/tx"
)

type DocumentStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	owner id.CollaboratorID
}

func TestDocumentStoreSuite(t *testing.T) {
	suite.Run(t, new(DocumentStoreSuite))
}

func (s *DocumentStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.owner = id.NewCollaboratorID()
}

func (s *DocumentStoreSuite) newDocument(kind models.Kind) *models.Document {
	d, err := models.NewDocument(id.NewDocumentID(), s.owner, kind, time.Now())
	s.Require().NoError(err)
	return d
}

func (s *DocumentStoreSuite) TestOneDocumentPerKind() {
	s.Require().NoError(s.store.Create(s.ctx, s.newDocument(models.KindPrivacy)))
	err := s.store.Create(s.ctx, s.newDocument(models.KindPrivacy))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *DocumentStoreSuite) TestUpdateChecksVersion() {
	d := s.newDocument(models.KindPrivacy)
	s.Require().NoError(s.store.Create(s.ctx, d))

	stale, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)

	s.Require().NoError(d.MarkAwaitingConfirmation(time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, d))
	s.Equal(int64(2), d.Version)

	s.Require().NoError(stale.MarkAwaitingConfirmation(time.Now()))
	s.ErrorIs(s.store.Update(s.ctx, stale), sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.StateAwaitingConfirmation, found.State)
	s.Equal(int64(2), found.Version)
}

func (s *DocumentStoreSuite) TestUpdateUnknown() {
	s.ErrorIs(s.store.Update(s.ctx, s.newDocument(models.KindPrivacy)), sentinel.ErrNotFound)
}

func (s *DocumentStoreSuite) TestRollbackRestoresPreviousVersion() {
	d := s.newDocument(models.KindIndependence)
	s.Require().NoError(s.store.Create(s.ctx, d))

	runner := tx.NewShardedRunner()
	var working *models.Document
	err := runner.RunInTx(s.ctx, d.ID.String(), func(ctx context.Context) error {
		var err error
		working, err = s.store.FindByID(ctx, d.ID)
		s.Require().NoError(err)
		s.Require().NoError(working.MarkAwaitingConfirmation(time.Now()))
		s.Require().NoError(s.store.Update(ctx, working))
		s.Equal(int64(2), working.Version)
		return errors.New("later step failed")
	})
	s.Require().Error(err)

	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.StateToSign, found.State)
	s.Equal(int64(1), found.Version)
	s.Equal(found.Version, working.Version, "caller's copy is rolled back with the row")
}

func (s *DocumentStoreSuite) TestCommittedUnitKeepsBumpedVersion() {
	d := s.newDocument(models.KindPrivacy)
	s.Require().NoError(s.store.Create(s.ctx, d))

	err := tx.NewShardedRunner().RunInTx(s.ctx, d.ID.String(), func(ctx context.Context) error {
		s.Require().NoError(d.MarkAwaitingConfirmation(time.Now()))
		return s.store.Update(ctx, d)
	})
	s.Require().NoError(err)
	s.Equal(int64(2), d.Version)

	s.Require().NoError(d.MarkSigned(time.Now()))
	s.Require().NoError(s.store.Update(s.ctx, d), "the caller's copy stays usable for the next update")
}

func (s *DocumentStoreSuite) TestListings() {
	first := s.newDocument(models.KindPrivacy)
	second := s.newDocument(models.KindContractOccasional)
	other, err := models.NewDocument(id.NewDocumentID(), id.NewCollaboratorID(), models.KindPrivacy, time.Now())
	s.Require().NoError(err)
	for _, d := range []*models.Document{first, second, other} {
		s.Require().NoError(s.store.Create(s.ctx, d))
	}

	owned, err := s.store.ListByCollaborator(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(owned, 2)

	byIDs, err := s.store.ListByIDs(s.ctx, []id.DocumentID{first.ID, first.ID, other.ID, id.NewDocumentID()})
	s.Require().NoError(err)
	s.Len(byIDs, 2)
}

func (s *DocumentStoreSuite) TestReturnedCopiesAreDetached() {
	d := s.newDocument(models.KindPrivacy)
	s.Require().NoError(s.store.Create(s.ctx, d))
	found, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	found.State = models.StateSigned

	again, err := s.store.FindByID(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.StateToSign, again.State)
}
