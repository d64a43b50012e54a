package signing

import (
	"fmt"
	"strings"

	id "compliancedesk/pkg/domain"
	dErrors "compliancedesk/pkg/domain-errors"
)

// InvalidLinkMessage is what a confirmation with an unusable code reveals.
const InvalidLinkMessage = "invalid or expired link"

// RetryMessage is shown when confirmation failed for a transient reason and
// the same link can be opened again.
const RetryMessage = "we could not complete the confirmation, please open the link again in a few minutes"

// ConfirmFailureMessage picks the message shown to the signer for a failed
// confirmation. It never names documents.
func ConfirmFailureMessage(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodePartialValidation, dErrors.CodeInternal, dErrors.CodeTimeout:
		return RetryMessage
	default:
		return InvalidLinkMessage
	}
}

func invalidCode() error {
	return dErrors.New(dErrors.CodeInvalidCode, InvalidLinkMessage)
}

// EntryFailure is one ledger entry that could not be validated.
type EntryFailure struct {
	EntryID    id.EntryID
	DocumentID id.DocumentID
	Err        error
}

// PartialValidationError reports a batch where some entries were validated and
// others were not. Retrying the same code only touches the failed ones.
type PartialValidationError struct {
	Succeeded []id.EntryID
	Failed    []EntryFailure
}

func (e *PartialValidationError) Error() string {
	docs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		docs[i] = f.DocumentID.String()
	}
	return fmt.Sprintf("%s: %d of %d signatures validated, failed documents: %s",
		dErrors.CodePartialValidation, len(e.Succeeded), len(e.Succeeded)+len(e.Failed), strings.Join(docs, ","))
}

func (e *PartialValidationError) Unwrap() error {
	return dErrors.New(dErrors.CodePartialValidation, "some signatures could not be validated, retry the link")
}

// DispatchError means the signatures were recorded but the verification email
// could not be sent. BatchToken lets the caller ask for a resend.
type DispatchError struct {
	BatchToken string
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: verification email not sent: %v", dErrors.CodeDispatch, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return dErrors.Wrap(e.Err, dErrors.CodeDispatch, "verification email could not be sent")
}
