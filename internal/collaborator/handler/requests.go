package handler

import (
	"math"
	"strings"

	"compliancedesk/internal/collaborator/models"
	dErrors "compliancedesk/pkg/domain-errors"
)

// IntakeRequest is the body of POST /admin/collaborators. Only email and
// contract type are mandatory; the rest can be completed through the portal.
type IntakeRequest struct {
	FirstName    string  `json:"firstName"`
	LastName     string  `json:"lastName"`
	Email        string  `json:"email"`
	TaxCode      string  `json:"taxCode"`
	VATNumber    string  `json:"vatNumber"`
	ContractType string  `json:"contractType"`
	AnnualLimit  float64 `json:"annualLimit"`
}

func (r *IntakeRequest) Validate() error {
	if len(r.FirstName) > 100 || len(r.LastName) > 100 || len(r.Email) > 254 {
		return dErrors.New(dErrors.CodeValidation, "field too long")
	}
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(r.ContractType) == "" {
		return dErrors.New(dErrors.CodeValidation, "contractType is required")
	}
	if r.AnnualLimit < 0 || math.IsNaN(r.AnnualLimit) || math.IsInf(r.AnnualLimit, 0) {
		return dErrors.New(dErrors.CodeValidation, "annualLimit must be a positive amount")
	}
	return nil
}

func (r *IntakeRequest) toIntake() models.Intake {
	return models.Intake{
		FirstName:    strings.TrimSpace(r.FirstName),
		LastName:     strings.TrimSpace(r.LastName),
		Email:        r.Email,
		TaxCode:      r.TaxCode,
		VATNumber:    r.VATNumber,
		ContractType: r.ContractType,
		AnnualLimit:  models.CentsFromFloat(r.AnnualLimit),
	}
}

// PaymentRequest is the body of POST /admin/collaborators/{id}/payments,
// in euros.
type PaymentRequest struct {
	Amount float64 `json:"amount"`
}

func (r *PaymentRequest) Validate() error {
	if r.Amount <= 0 || math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if models.CentsFromFloat(r.Amount) > models.MaxPayment {
		return dErrors.New(dErrors.CodeValidation, "amount exceeds the maximum single payment of "+models.MaxPayment.String())
	}
	return nil
}

// ProfileRequest is the body of PATCH /portal/profile. Absent fields are kept.
type ProfileRequest struct {
	LastName  *string `json:"lastName"`
	TaxCode   *string `json:"taxCode"`
	VATNumber *string `json:"vatNumber"`
}

func (r *ProfileRequest) Validate() error {
	if r.LastName == nil && r.TaxCode == nil && r.VATNumber == nil {
		return dErrors.New(dErrors.CodeValidation, "no profile fields supplied")
	}
	if r.LastName != nil && len(*r.LastName) > 100 {
		return dErrors.New(dErrors.CodeValidation, "lastName too long")
	}
	return nil
}

func (r *ProfileRequest) toUpdate() models.ProfileUpdate {
	return models.ProfileUpdate{LastName: r.LastName, TaxCode: r.TaxCode, VATNumber: r.VATNumber}
}
