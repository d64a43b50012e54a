package handler

import (
	"time"

	"compliancedesk/internal/signing"
)

type SignResponse struct {
	BatchToken  string `json:"batchToken"`
	EmailSentTo string `json:"emailSentTo"`
}

// DispatchFailureResponse is written with 502 when signatures were recorded
// but the verification email was not sent.
type DispatchFailureResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	BatchToken       string `json:"batchToken"`
}

// MessageResponse is the only body a failed confirmation returns.
type MessageResponse struct {
	Message string `json:"message"`
}

type ConfirmedDocument struct {
	Title            string    `json:"title"`
	SignedAt         time.Time `json:"signedAt"`
	VerificationCode string    `json:"verificationCode"`
	Hash             string    `json:"hash"`
}

type ConfirmResponse struct {
	SignerName   string              `json:"signerName"`
	Documents    []ConfirmedDocument `json:"documents"`
	DownloadLink string              `json:"downloadLink"`
}

type CertificateDocument struct {
	DocumentID       string    `json:"documentId"`
	Title            string    `json:"title"`
	SignedAt         time.Time `json:"signedAt"`
	VerificationCode string    `json:"verificationCode"`
	Hash             string    `json:"hash"`
	HashVerified     bool      `json:"hashVerified"`
	ContentURL       string    `json:"contentUrl,omitempty"`
}

type CertificateResponse struct {
	BatchToken  string                `json:"batchToken"`
	SignerName  string                `json:"signerName"`
	SignerEmail string                `json:"signerEmail"`
	VerifiedAt  time.Time             `json:"verifiedAt"`
	Documents   []CertificateDocument `json:"documents"`
	ArtifactURL string                `json:"artifactUrl,omitempty"`
}

type ResendResponse struct {
	EmailSentTo string `json:"emailSentTo"`
}

func toConfirmResponse(c *signing.Certificate) *ConfirmResponse {
	docs := make([]ConfirmedDocument, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = ConfirmedDocument{
			Title:            d.Title,
			SignedAt:         d.SignedAt,
			VerificationCode: d.VerificationCode,
			Hash:             d.Hash,
		}
	}
	return &ConfirmResponse{SignerName: c.SignerName, Documents: docs, DownloadLink: c.DownloadLink}
}

func toCertificateResponse(c *signing.Certificate) *CertificateResponse {
	docs := make([]CertificateDocument, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = CertificateDocument{
			DocumentID:       d.DocumentID.String(),
			Title:            d.Title,
			SignedAt:         d.SignedAt,
			VerificationCode: d.VerificationCode,
			Hash:             d.Hash,
			HashVerified:     d.HashVerified,
			ContentURL:       d.ContentURL,
		}
	}
	return &CertificateResponse{
		BatchToken:  c.BatchToken,
		SignerName:  c.SignerName,
		SignerEmail: c.SignerEmail,
		VerifiedAt:  c.VerifiedAt,
		Documents:   docs,
		ArtifactURL: c.ArtifactURL,
	}
}
