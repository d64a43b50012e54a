package status

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docmodels "compliancedesk/internal/document/models"
	docstore "compliancedesk/internal/document/store"
	ledgermodels "compliancedesk/internal/ledger/models"
	ledgerstore "compliancedesk/internal/ledger/store"
	id "compliancedesk/pkg/domain"
)

var t0 = time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)

func doc() *docmodels.Document {
	return &docmodels.Document{ID: id.NewDocumentID()}
}

func entry(d *docmodels.Document, valid bool, at time.Time) *ledgermodels.Entry {
	return &ledgermodels.Entry{ID: id.NewEntryID(), DocumentID: d.ID, Valid: valid, CreatedAt: at}
}

func TestCompute(t *testing.T) {
	a, b := doc(), doc()

	tests := []struct {
		name    string
		docs    []*docmodels.Document
		entries []*ledgermodels.Entry
		want    Status
	}{
		{name: "no documents", want: NoDocuments},
		{name: "nothing signed", docs: []*docmodels.Document{a, b}, want: AwaitingSignature},
		{
			name:    "one pending confirmation",
			docs:    []*docmodels.Document{a, b},
			entries: []*ledgermodels.Entry{entry(a, true, t0), entry(b, false, t0)},
			want:    AwaitingConfirmation,
		},
		{
			name:    "unsigned beats unconfirmed",
			docs:    []*docmodels.Document{a, b},
			entries: []*ledgermodels.Entry{entry(a, false, t0)},
			want:    AwaitingSignature,
		},
		{
			name:    "all valid",
			docs:    []*docmodels.Document{a, b},
			entries: []*ledgermodels.Entry{entry(a, true, t0), entry(b, true, t0)},
			want:    Completed,
		},
		{
			name:    "latest entry wins",
			docs:    []*docmodels.Document{a},
			entries: []*ledgermodels.Entry{entry(a, true, t0), entry(a, false, t0.Add(time.Minute))},
			want:    AwaitingConfirmation,
		},
		{
			name:    "tie prefers the valid entry",
			docs:    []*docmodels.Document{a},
			entries: []*ledgermodels.Entry{entry(a, false, t0), entry(a, true, t0)},
			want:    Completed,
		},
		{
			name:    "entries of other documents are ignored",
			docs:    []*docmodels.Document{a},
			entries: []*ledgermodels.Entry{entry(a, true, t0), entry(b, false, t0)},
			want:    Completed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.docs, tt.entries))
		})
	}
}

func TestCompute_OneUnsignedAmongNine(t *testing.T) {
	docs := make([]*docmodels.Document, 10)
	entries := make([]*ledgermodels.Entry, 0, 9)
	for i := range docs {
		docs[i] = doc()
		if i < 9 {
			entries = append(entries, entry(docs[i], true, t0))
		}
	}
	assert.Equal(t, AwaitingSignature, Compute(docs, entries))

	entries = append(entries, entry(docs[9], true, t0))
	assert.Equal(t, Completed, Compute(docs, entries))
}

func TestCompute_IsStable(t *testing.T) {
	a, b := doc(), doc()
	docs := []*docmodels.Document{a, b}
	entries := []*ledgermodels.Entry{entry(a, true, t0), entry(b, false, t0)}
	assert.Equal(t, Compute(docs, entries), Compute(docs, entries))
}

func TestStatusOrdering(t *testing.T) {
	order := []Status{NoDocuments, AwaitingSignature, AwaitingConfirmation, Completed}
	for i := 0; i < len(order)-1; i++ {
		assert.True(t, order[i].Worse(order[i+1]))
		assert.False(t, order[i+1].Worse(order[i]))
	}
}

func TestService_ForCollaborator(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewInMemory()
	ledger := ledgerstore.NewInMemory()
	svc := NewService(docs, ledger)
	owner := id.NewCollaboratorID()

	summary, err := svc.ForCollaborator(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, NoDocuments, summary.Status)

	var created []*docmodels.Document
	for _, kind := range []docmodels.Kind{docmodels.KindPrivacy, docmodels.KindIndependence} {
		d, err := docmodels.NewDocument(id.NewDocumentID(), owner, kind, t0)
		require.NoError(t, err)
		require.NoError(t, docs.Create(ctx, d))
		created = append(created, d)
	}

	token := strings.Repeat("ab", 32)
	e, err := ledgermodels.NewEntry(id.NewEntryID(), created[0].ID, owner,
		ledgermodels.Signer{Name: "Mario Rossi", Email: "mario@example.com"}, token, "VER-T-AAAAA-0", t0, ledgermodels.ClientMetadata{})
	require.NoError(t, err)
	require.NoError(t, ledger.Create(ctx, e))

	summary, err = svc.ForCollaborator(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, AwaitingSignature, summary.Status)
	require.Len(t, summary.Documents, 2)

	states := map[id.DocumentID]Status{}
	for _, ds := range summary.Documents {
		states[ds.Document.ID] = ds.State
	}
	assert.Equal(t, AwaitingConfirmation, states[created[0].ID])
	assert.Equal(t, AwaitingSignature, states[created[1].ID])

	again, err := svc.ForCollaborator(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, summary.Status, again.Status)
}
