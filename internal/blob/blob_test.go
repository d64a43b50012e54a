package blob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("https://files.example.com/")
	url, err := s.Put(context.Background(), "documents/c1/privacy v1.html", []byte("<p>hi</p>"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/documents/c1/privacy%20v1.html", url)

	obj, err := s.Get(context.Background(), "documents/c1/privacy v1.html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", obj.ContentType)
	assert.Equal(t, "<p>hi</p>", string(obj.Data))

	_, err = s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://x/a/b", joinURL("http://x", "/a/b"))
	assert.Equal(t, "http://x/a/b", joinURL("http://x/", "a/b"))
}
