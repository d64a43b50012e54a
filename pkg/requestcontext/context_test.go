package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "compliancedesk/pkg/domain"
)

func TestDefaults(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "system", Actor(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.True(t, CollaboratorID(ctx).IsNil())

	before := time.Now()
	assert.False(t, Now(ctx).Before(before))
}

func TestInjectedValues(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	cid := id.NewCollaboratorID()

	ctx := WithTime(context.Background(), fixed)
	ctx = WithActor(ctx, "admin")
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithCollaboratorID(ctx, cid)
	ctx = WithClientMetadata(ctx, "203.0.113.7", "curl/8.0")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "admin", Actor(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, cid, CollaboratorID(ctx))
	assert.Equal(t, "203.0.113.7", ClientIP(ctx))
	assert.Equal(t, "curl/8.0", UserAgent(ctx))
}
