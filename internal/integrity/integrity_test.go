package integrity

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash_Deterministic(t *testing.T) {
	parts := []string{"doc-1", "collab-1", "Mario Rossi", "mario@example.com", "2025-01-02T03:04:05.678Z"}
	first := ContentHash(parts...)
	second := ContentHash(parts...)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, `^[0-9a-f]{64}$`, first)
}

func TestContentHash_KnownVector(t *testing.T) {
	// sha256("a-b")
	assert.Equal(t, "d44362d67d921091c7b9674d752e9e23c1f9ec8a4f0b82741bf01364eb97c830", ContentHash("a", "b"))
	assert.Equal(t, ContentHash("a-b"), ContentHash("a", "b"))
}

func TestContentHash_Avalanche(t *testing.T) {
	base := []string{"doc-1", "collab-1", "Mario Rossi", "mario@example.com", "2025-01-02T03:04:05.678Z"}
	baseHash, _ := hex.DecodeString(ContentHash(base...))

	for i := range base {
		mutated := append([]string(nil), base...)
		mutated[i] = mutated[i] + "x"
		h, _ := hex.DecodeString(ContentHash(mutated...))
		require.NotEqual(t, baseHash, h, "changing part %d must change the hash", i)

		// Roughly half the bits flip; accept a wide band to keep this statistical.
		diff := 0
		for j := range h {
			x := h[j] ^ baseHash[j]
			for x != 0 {
				diff += int(x & 1)
				x >>= 1
			}
		}
		assert.Greater(t, diff, 64, "part %d flipped only %d bits", i, diff)
		assert.Less(t, diff, 192, "part %d flipped %d bits", i, diff)
	}
}

func TestVerifyContentHash(t *testing.T) {
	h := ContentHash("a", "b", "c")
	assert.True(t, VerifyContentHash(h, "a", "b", "c"))
	assert.False(t, VerifyContentHash(h, "a", "b", "d"))
	assert.False(t, VerifyContentHash("", "a"))
}

func TestRandomToken(t *testing.T) {
	tok, err := RandomToken(BatchTokenBytes)
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	other, err := RandomToken(BatchTokenBytes)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)

	_, err = RandomToken(0)
	assert.Error(t, err)
}

func TestVerificationCode_Format(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	c := NewCoder(func() time.Time { return fixed })
	pattern := regexp.MustCompile(`^VER-([0-9A-Z]+)-([0-9A-Z]{5})-(\d+)$`)

	code := c.VerificationCode(3)
	m := pattern.FindStringSubmatch(code)
	require.NotNil(t, m, code)
	assert.Equal(t, "LOYW3V28", m[1])
	assert.Equal(t, "3", m[3])
}

func TestVerificationCode_UniqueWithinBatch(t *testing.T) {
	fixed := time.Now()
	c := NewCoder(func() time.Time { return fixed })
	seen := make(map[string]struct{})
	for i := range 50 {
		code := c.VerificationCode(i)
		_, dup := seen[code]
		require.False(t, dup, fmt.Sprintf("duplicate code %s", code))
		seen[code] = struct{}{}
	}
}
