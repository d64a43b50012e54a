package compliance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "compliancedesk/pkg/domain"
	audit "compliancedesk/pkg/platform/audit"
	"compliancedesk/pkg/platform/audit/store/memory"
	"compliancedesk/pkg/requestcontext"
)

type failingWriter struct{}

func (failingWriter) Append(context.Context, audit.Entry) error { return errors.New("disk full") }

type PublisherSuite struct {
	suite.Suite
	store *memory.InMemoryStore
	pub   *Publisher
	ctx   context.Context
	now   time.Time
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.pub = New(s.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithRequestID(s.ctx, "req-42")
	s.ctx = requestcontext.WithActor(s.ctx, "mario.rossi@example.com")
}

func (s *PublisherSuite) TestEmitStampsFromContext() {
	cid := id.NewCollaboratorID()
	err := s.pub.Emit(s.ctx, audit.Entry{
		Action:         audit.ActionEmailVerified,
		EntityType:     audit.EntityLedgerEntry,
		EntityID:       "entry-1",
		CollaboratorID: cid,
	})
	s.Require().NoError(err)

	entries, err := s.store.ListByCollaborator(s.ctx, cid)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	e := entries[0]
	s.Equal(s.now, e.Timestamp)
	s.Equal("req-42", e.RequestID)
	s.Equal("mario.rossi@example.com", e.Actor)
	s.NotEqual(id.AuditEntryID{}, e.ID)
}

func (s *PublisherSuite) TestEmitKeepsExplicitActor() {
	err := s.pub.Emit(s.ctx, audit.Entry{Action: audit.ActionDocumentGenerated, EntityType: audit.EntityDocument, EntityID: "d", Actor: "system"})
	s.Require().NoError(err)
	all, _ := s.store.ListAll(s.ctx)
	s.Equal("system", all[0].Actor)
}

func (s *PublisherSuite) TestEmitRejectsIncompleteEntries() {
	s.Error(s.pub.Emit(s.ctx, audit.Entry{EntityType: audit.EntityDocument, EntityID: "d"}))
	s.Error(s.pub.Emit(s.ctx, audit.Entry{Action: audit.ActionDocumentSigned}))
	all, _ := s.store.ListAll(s.ctx)
	s.Empty(all)
}

func TestEmit_FailClosed(t *testing.T) {
	pub := New(failingWriter{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := pub.Emit(context.Background(), audit.Entry{Action: audit.ActionDocumentSigned, EntityType: audit.EntityDocument, EntityID: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.NotPanics(t, func() {
		pub.Record(context.Background(), audit.Entry{Action: audit.ActionEmailSent, EntityType: audit.EntityEmail, EntityID: "x"})
	})
}
