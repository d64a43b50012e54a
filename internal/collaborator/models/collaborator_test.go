package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

var now = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestNewCollaborator(t *testing.T) {
	t.Run("defaults limit and lowercases email", func(t *testing.T) {
		c, err := NewCollaborator(id.NewCollaboratorID(), Intake{
			FirstName: " Mario ", LastName: "Rossi", Email: "Mario.Rossi@Example.com",
			ContractType: "occasional", TaxCode: "rssmra80a01h501z",
		}, now)
		require.NoError(t, err)
		assert.Equal(t, "Mario", c.FirstName)
		assert.Equal(t, "mario.rossi@example.com", c.Email)
		assert.Equal(t, DefaultAnnualLimit, c.AnnualLimit)
		assert.Equal(t, "RSSMRA80A01H501Z", c.TaxCode)
		assert.True(t, c.ProfileComplete)
	})

	t.Run("missing tax code leaves profile incomplete", func(t *testing.T) {
		c, err := NewCollaborator(id.NewCollaboratorID(), Intake{FirstName: "Ada", LastName: "L", Email: "ada@example.com", ContractType: "occasional"}, now)
		require.NoError(t, err)
		assert.False(t, c.ProfileComplete)
	})

	t.Run("vat-registered needs VAT number for completeness", func(t *testing.T) {
		c, err := NewCollaborator(id.NewCollaboratorID(), Intake{
			FirstName: "Ada", LastName: "L", Email: "ada@example.com",
			ContractType: "vat-registered", TaxCode: "RSSMRA80A01H501Z",
		}, now)
		require.NoError(t, err)
		assert.False(t, c.ProfileComplete)
	})

	tests := []struct {
		name string
		in   Intake
	}{
		{"missing first name", Intake{Email: "a@example.com", ContractType: "occasional"}},
		{"bad email", Intake{FirstName: "A", Email: "not-an-email", ContractType: "occasional"}},
		{"display-name email", Intake{FirstName: "A", Email: "A <a@example.com>", ContractType: "occasional"}},
		{"unknown contract", Intake{FirstName: "A", Email: "a@example.com", ContractType: "permanent"}},
		{"bad tax code", Intake{FirstName: "A", Email: "a@example.com", ContractType: "occasional", TaxCode: "XYZ"}},
		{"bad vat", Intake{FirstName: "A", Email: "a@example.com", ContractType: "mixed", VATNumber: "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollaborator(id.NewCollaboratorID(), tt.in, now)
			require.Error(t, err)
			assert.NotEqual(t, dErrors.CodeInternal, dErrors.CodeOf(err))
		})
	}
}

func TestApplyProfile(t *testing.T) {
	c, err := NewCollaborator(id.NewCollaboratorID(), Intake{FirstName: "Ada", Email: "ada@example.com", ContractType: "mixed"}, now)
	require.NoError(t, err)
	require.False(t, c.ProfileComplete)

	later := now.Add(time.Hour)
	require.NoError(t, c.ApplyProfile(ProfileUpdate{LastName: strPtr("Lovelace"), TaxCode: strPtr("LVLDAA80A01H501Z")}, later))
	assert.False(t, c.ProfileComplete, "mixed still needs a VAT number")

	require.NoError(t, c.ApplyProfile(ProfileUpdate{VATNumber: strPtr("12345678901")}, later))
	assert.True(t, c.ProfileComplete)
	assert.Equal(t, later, c.UpdatedAt)

	assert.Error(t, c.ApplyProfile(ProfileUpdate{}, later))
	assert.Error(t, c.ApplyProfile(ProfileUpdate{VATNumber: strPtr("abc")}, later))
	assert.Equal(t, "12345678901", c.VATNumber, "failed update leaves fields untouched")
}

func TestApplyPaymentAndLimits(t *testing.T) {
	c, err := NewCollaborator(id.NewCollaboratorID(), Intake{FirstName: "Ada", Email: "ada@example.com", ContractType: "occasional"}, now)
	require.NoError(t, err)

	require.NoError(t, c.ApplyPayment(CentsFromFloat(4000), now))
	assert.False(t, c.NearLimit(), "exactly 80% is not above the threshold")

	require.NoError(t, c.ApplyPayment(CentsFromFloat(0.01), now))
	assert.True(t, c.NearLimit())
	assert.False(t, c.OverLimit())

	require.NoError(t, c.ApplyPayment(CentsFromFloat(1000), now))
	assert.True(t, c.OverLimit())
	assert.Equal(t, "5000.01", c.AnnualAmountUsed.String())

	assert.Error(t, c.ApplyPayment(0, now))
	assert.Error(t, c.ApplyPayment(-5, now))
}

func TestApplyPayment_RejectsAmountsThatCouldWrap(t *testing.T) {
	c, err := NewCollaborator(id.NewCollaboratorID(), Intake{FirstName: "Ada", Email: "ada@example.com", ContractType: "occasional"}, now)
	require.NoError(t, err)

	err = c.ApplyPayment(CentsFromFloat(5e16), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, Cents(0), c.AnnualAmountUsed)

	require.NoError(t, c.ApplyPayment(MaxPayment, now))
	c.AnnualAmountUsed = math.MaxInt64 - 10
	err = c.ApplyPayment(MaxPayment, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, Cents(math.MaxInt64-10), c.AnnualAmountUsed, "total never wraps negative")
	assert.True(t, c.OverLimit())
}

func TestCentsFromFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want Cents
	}{
		{12.34, 1234},
		{-0.5, -50},
		{math.NaN(), 0},
		{1e30, math.MaxInt64},
		{-1e30, math.MinInt64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CentsFromFloat(tt.in), "%v", tt.in)
	}
}

func TestAppendNote(t *testing.T) {
	c := &Collaborator{}
	c.AppendNote("bounce: mailbox full", now)
	c.AppendNote("  ", now)
	c.AppendNote("complaint", now)
	assert.Equal(t, "bounce: mailbox full\ncomplaint", c.Note)
}

func TestCents(t *testing.T) {
	assert.Equal(t, Cents(1999), CentsFromFloat(19.99))
	assert.Equal(t, "-0.05", Cents(-5).String())
	assert.InDelta(t, 19.99, Cents(1999).Float(), 1e-9)
}
