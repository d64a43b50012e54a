// Package portal issues and validates the signed links collaborators use to
// open their signing portal.
package portal

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

const audience = "collaborator-portal"

// Claims identify the collaborator a portal link was issued for.
type Claims struct {
	CollaboratorID string `json:"collaborator_id"`
	jwt.RegisteredClaims
}

type Links struct {
	signingKey []byte
	issuer     string
	baseURL    string
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Links)

func WithClock(now func() time.Time) Option {
	return func(l *Links) {
		l.now = now
	}
}

func NewLinks(signingKey, issuer, baseURL string, ttl time.Duration, opts ...Option) *Links {
	l := &Links{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		baseURL:    strings.TrimRight(baseURL, "/"),
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue returns a signed token and the portal URL that carries it.
func (l *Links) Issue(collaboratorID id.CollaboratorID) (token, link string, err error) {
	now := l.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		CollaboratorID: collaboratorID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    l.issuer,
			Audience:  []string{audience},
			ID:        uuid.NewString(),
		},
	})
	token, err = t.SignedString(l.signingKey)
	if err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign portal link")
	}
	return token, l.baseURL + "/portal?token=" + url.QueryEscape(token), nil
}

// Validate checks signature, issuer, audience and expiry.
func (l *Links) Validate(token string) (id.CollaboratorID, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return l.signingKey, nil
	},
		jwt.WithIssuer(l.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(l.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.CollaboratorID{}, dErrors.New(dErrors.CodeUnauthorized, "portal link has expired")
		}
		return id.CollaboratorID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid portal link")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.CollaboratorID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid portal link")
	}
	collaboratorID, err := id.ParseCollaboratorID(claims.CollaboratorID)
	if err != nil {
		return id.CollaboratorID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid portal link")
	}
	return collaboratorID, nil
}
