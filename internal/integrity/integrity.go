// Package integrity derives the tamper-evidence values attached to signatures:
// content hashes, batch tokens and verification codes.
package integrity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Delimiter joins hash inputs. Changing it invalidates every stored hash.
const Delimiter = "-"

// BatchTokenBytes is the entropy of a signing batch token.
const BatchTokenBytes = 32

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ContentHash joins parts with Delimiter and returns the lowercase hex SHA-256.
func ContentHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, Delimiter)))
	return hex.EncodeToString(sum[:])
}

// VerifyContentHash re-derives the hash from parts and compares in constant time.
func VerifyContentHash(hash string, parts ...string) bool {
	want := ContentHash(parts...)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(want)) == 1
}

// RandomToken returns n cryptographically random bytes, hex encoded.
func RandomToken(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("token length must be positive, got %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Coder generates verification codes. The clock is injectable for tests.
type Coder struct {
	now func() time.Time
}

func NewCoder(now func() time.Time) *Coder {
	if now == nil {
		now = time.Now
	}
	return &Coder{now: now}
}

// VerificationCode returns VER-<base36 unix millis>-<5 random base36>-<index>.
// The index suffix makes codes unique within a batch; the random part makes
// collisions across batches improbable.
func (c *Coder) VerificationCode(index int) string {
	millis := strconv.FormatInt(c.now().UnixMilli(), 36)
	return fmt.Sprintf("VER-%s-%s-%d", strings.ToUpper(millis), randomBase36(5), index)
}

// VerificationCode uses the wall clock.
func VerificationCode(index int) string {
	return NewCoder(nil).VerificationCode(index)
}

func randomBase36(n int) string {
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(fmt.Sprintf("integrity: random source unavailable: %v", err))
		}
		out[i] = codeAlphabet[v.Int64()]
	}
	return string(out)
}
