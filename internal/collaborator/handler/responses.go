package handler

import (
	"time"

	"compliancedesk/internal/collaborator/models"
	docmodels "compliancedesk/internal/document/models"
	"compliancedesk/internal/onboarding"
	"compliancedesk/internal/status"
	audit "compliancedesk/pkg/platform/audit"
)

type CollaboratorResponse struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	TaxCode          string    `json:"taxCode,omitempty"`
	VATNumber        string    `json:"vatNumber,omitempty"`
	ContractType     string    `json:"contractType"`
	AnnualLimit      float64   `json:"annualLimit"`
	AnnualAmountUsed float64   `json:"annualAmountUsed"`
	UsageRatio       float64   `json:"usageRatio"`
	NearLimit        bool      `json:"nearLimit"`
	OverLimit        bool      `json:"overLimit"`
	ProfileComplete  bool      `json:"profileComplete"`
	Note             string    `json:"note,omitempty"`
	Status           string    `json:"status,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type DocumentResponse struct {
	ID               string     `json:"id"`
	Kind             string     `json:"kind"`
	Title            string     `json:"title"`
	Number           string     `json:"number"`
	State            string     `json:"state"`
	Status           string     `json:"status,omitempty"`
	ContentURL       string     `json:"contentUrl,omitempty"`
	ValidFrom        time.Time  `json:"validFrom"`
	ValidUntil       time.Time  `json:"validUntil"`
	SignedAt         *time.Time `json:"signedAt,omitempty"`
	VerificationCode string     `json:"verificationCode,omitempty"`
	Device           string     `json:"device,omitempty"`
}

type DetailResponse struct {
	Collaborator CollaboratorResponse `json:"collaborator"`
	Status       string               `json:"status"`
	Documents    []DocumentResponse   `json:"documents"`
}

type IntakeResponse struct {
	Collaborator CollaboratorResponse `json:"collaborator"`
	Documents    []DocumentResponse   `json:"documents"`
	PortalLink   string               `json:"portalLink"`
	EmailSent    bool                 `json:"emailSent"`
	Warning      string               `json:"warning,omitempty"`
}

type PortalDocumentsResponse struct {
	Collaborator CollaboratorResponse `json:"collaborator"`
	Status       string               `json:"status"`
	Documents    []DocumentResponse   `json:"documents"`
}

type AuditEntryResponse struct {
	ID          string         `json:"id"`
	Actor       string         `json:"actor"`
	Action      string         `json:"action"`
	Category    string         `json:"category"`
	Description string         `json:"description,omitempty"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Payload     map[string]any `json:"payload,omitempty"`
	RequestID   string         `json:"requestId,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

func toCollaboratorResponse(c *models.Collaborator, st status.Status) CollaboratorResponse {
	return CollaboratorResponse{
		ID:               c.ID.String(),
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Email:            c.Email,
		TaxCode:          c.TaxCode,
		VATNumber:        c.VATNumber,
		ContractType:     string(c.ContractType),
		AnnualLimit:      c.AnnualLimit.Float(),
		AnnualAmountUsed: c.AnnualAmountUsed.Float(),
		UsageRatio:       c.UsageRatio(),
		NearLimit:        c.NearLimit(),
		OverLimit:        c.OverLimit(),
		ProfileComplete:  c.ProfileComplete,
		Note:             c.Note,
		Status:           string(st),
		CreatedAt:        c.CreatedAt,
	}
}

func toDocumentResponse(d *docmodels.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID.String(),
		Kind:       string(d.Kind),
		Title:      d.Title,
		Number:     d.Number,
		State:      string(d.State),
		ContentURL: d.ContentURL,
		ValidFrom:  d.ValidFrom,
		ValidUntil: d.ValidUntil,
		SignedAt:   d.SignedAt,
	}
}

func toDocumentResponses(summary *status.Summary) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(summary.Documents))
	for _, ds := range summary.Documents {
		resp := toDocumentResponse(ds.Document)
		resp.Status = string(ds.State)
		if ds.Entry != nil {
			resp.VerificationCode = ds.Entry.VerificationCode
			resp.Device = ds.Entry.Device
		}
		out = append(out, resp)
	}
	return out
}

func toIntakeResponse(res *onboarding.Result) IntakeResponse {
	docs := make([]DocumentResponse, 0, len(res.Documents))
	for _, d := range res.Documents {
		docs = append(docs, toDocumentResponse(d))
	}
	return IntakeResponse{
		Collaborator: toCollaboratorResponse(res.Collaborator, ""),
		Documents:    docs,
		PortalLink:   res.PortalLink,
		EmailSent:    res.EmailSent,
		Warning:      res.Warning,
	}
}

func toAuditResponses(entries []audit.Entry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:          e.ID.String(),
			Actor:       e.Actor,
			Action:      string(e.Action),
			Category:    string(e.Action.Category()),
			Description: e.Description,
			EntityType:  string(e.EntityType),
			EntityID:    e.EntityID,
			Payload:     e.Payload,
			RequestID:   e.RequestID,
			Timestamp:   e.Timestamp,
		})
	}
	return out
}
