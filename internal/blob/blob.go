// Package blob stores rendered and signed document artifacts.
package blob

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNotFound is returned by Get for an unknown path.
var ErrNotFound = errors.New("blob not found")

// Store persists artifacts and resolves their public URLs.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	PublicURL(path string) string
}

func joinURL(base, path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
