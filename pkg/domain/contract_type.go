package domain

import (
	"strings"

	dErrors "compliancedesk/pkg/domain-errors"
)

// ContractType classifies how a collaborator is engaged. It drives which legal
// documents must be generated and signed.
//
// Usage: construct via ParseContractType at trust boundaries; rows loaded from
// storage may carry legacy values and are checked again when documents are
// generated.
type ContractType string

const (
	ContractOccasional    ContractType = "occasional"
	ContractVATRegistered ContractType = "vat-registered"
	ContractMixed         ContractType = "mixed"
)

var validContractTypes = map[ContractType]bool{
	ContractOccasional:    true,
	ContractVATRegistered: true,
	ContractMixed:         true,
}

// ParseContractType constructs a ContractType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseContractType(s string) (ContractType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "contract type cannot be empty")
	}
	c := ContractType(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid contract type")
	}
	return c, nil
}

func (c ContractType) IsValid() bool {
	return validContractTypes[c]
}

// RequiresVATNumber reports whether the collaborator invoices with a VAT number.
func (c ContractType) RequiresVATNumber() bool {
	return c == ContractVATRegistered || c == ContractMixed
}

func (c ContractType) String() string {
	return string(c)
}
