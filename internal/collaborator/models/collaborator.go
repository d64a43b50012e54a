package models

import (
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

// DefaultAnnualLimit is the yearly ceiling for occasional work (5000.00).
const DefaultAnnualLimit Cents = 500000

// NearLimitRatio is the usage share above which the dashboard warns.
const NearLimitRatio = 0.8

var (
	taxCodePattern   = regexp.MustCompile(`^[A-Z]{6}[0-9]{2}[A-Z][0-9]{2}[A-Z][0-9]{3}[A-Z]$`)
	vatNumberPattern = regexp.MustCompile(`^[0-9]{11}$`)
)

// Collaborator is a freelance worker going through compliance onboarding.
//
// Invariants:
//   - Email is a valid address, stored lowercased
//   - ContractType is one of the known types
//   - AnnualAmountUsed only grows
//   - ProfileComplete is recomputed on every profile change, never set directly
//   - never hard-deleted
type Collaborator struct {
	ID               id.CollaboratorID
	FirstName        string
	LastName         string
	Email            string
	TaxCode          string
	VATNumber        string
	ContractType     id.ContractType
	AnnualLimit      Cents
	AnnualAmountUsed Cents
	ProfileComplete  bool
	Note             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Intake is the admin-supplied data for a new collaborator. Anything but
// name, email and contract type may be completed later through the portal.
type Intake struct {
	FirstName    string
	LastName     string
	Email        string
	TaxCode      string
	VATNumber    string
	ContractType string
	AnnualLimit  Cents
}

func NewCollaborator(collaboratorID id.CollaboratorID, in Intake, now time.Time) (*Collaborator, error) {
	firstName := strings.TrimSpace(in.FirstName)
	if firstName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "first name is required")
	}
	email, err := normaliseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	contractType, err := id.ParseContractType(in.ContractType)
	if err != nil {
		return nil, err
	}
	limit := in.AnnualLimit
	if limit <= 0 {
		limit = DefaultAnnualLimit
	}

	c := &Collaborator{
		ID:           collaboratorID,
		FirstName:    firstName,
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		ContractType: contractType,
		AnnualLimit:  limit,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.setTaxIdentifiers(in.TaxCode, in.VATNumber); err != nil {
		return nil, err
	}
	c.ProfileComplete = c.computeProfileComplete()
	return c, nil
}

// FullName is the name printed on documents.
func (c *Collaborator) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// ProfileUpdate carries the fields a collaborator may fill in through the portal.
// Nil pointers leave the field untouched.
type ProfileUpdate struct {
	LastName  *string
	TaxCode   *string
	VATNumber *string
}

func (u ProfileUpdate) IsEmpty() bool {
	return u.LastName == nil && u.TaxCode == nil && u.VATNumber == nil
}

// ApplyProfile validates and applies a portal profile update.
func (c *Collaborator) ApplyProfile(u ProfileUpdate, now time.Time) error {
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeValidation, "no profile fields supplied")
	}
	taxCode, vat := c.TaxCode, c.VATNumber
	if u.TaxCode != nil {
		taxCode = *u.TaxCode
	}
	if u.VATNumber != nil {
		vat = *u.VATNumber
	}
	if err := c.setTaxIdentifiers(taxCode, vat); err != nil {
		return err
	}
	if u.LastName != nil {
		c.LastName = strings.TrimSpace(*u.LastName)
	}
	c.ProfileComplete = c.computeProfileComplete()
	c.UpdatedAt = now
	return nil
}

// ApplyPayment adds a paid amount to the yearly total.
func (c *Collaborator) ApplyPayment(amount Cents, now time.Time) error {
	if amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if amount > MaxPayment {
		return dErrors.New(dErrors.CodeValidation, "amount exceeds the maximum single payment of "+MaxPayment.String())
	}
	if c.AnnualAmountUsed > math.MaxInt64-amount {
		return dErrors.New(dErrors.CodeValidation, "amount would overflow the annual total")
	}
	c.AnnualAmountUsed += amount
	c.UpdatedAt = now
	return nil
}

// AppendNote adds a line to the admin note, e.g. a bounce report.
func (c *Collaborator) AppendNote(line string, now time.Time) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if c.Note != "" {
		c.Note += "\n"
	}
	c.Note += line
	c.UpdatedAt = now
}

// UsageRatio is AnnualAmountUsed / AnnualLimit.
func (c *Collaborator) UsageRatio() float64 {
	if c.AnnualLimit <= 0 {
		return 0
	}
	return float64(c.AnnualAmountUsed) / float64(c.AnnualLimit)
}

func (c *Collaborator) NearLimit() bool { return c.UsageRatio() > NearLimitRatio }
func (c *Collaborator) OverLimit() bool { return c.AnnualAmountUsed > c.AnnualLimit }

func (c *Collaborator) setTaxIdentifiers(taxCode, vat string) error {
	taxCode = strings.ToUpper(strings.TrimSpace(taxCode))
	vat = strings.TrimSpace(vat)
	if taxCode != "" && !taxCodePattern.MatchString(taxCode) {
		return dErrors.New(dErrors.CodeValidation, "tax code is malformed")
	}
	if vat != "" && !vatNumberPattern.MatchString(vat) {
		return dErrors.New(dErrors.CodeValidation, "VAT number must be 11 digits")
	}
	c.TaxCode, c.VATNumber = taxCode, vat
	return nil
}

func (c *Collaborator) computeProfileComplete() bool {
	if c.FirstName == "" || c.LastName == "" || c.TaxCode == "" {
		return false
	}
	if c.ContractType.RequiresVATNumber() && c.VATNumber == "" {
		return false
	}
	return true
}

func normaliseEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", dErrors.New(dErrors.CodeValidation, "email is malformed")
	}
	return strings.ToLower(addr.Address), nil
}
