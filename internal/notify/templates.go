package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[Kind]string{
	KindDocumentsReady:     "Compliance documents ready to sign",
	KindVerification:       "Confirm your digital signature",
	KindDocumentsCompleted: "Signed documents receipt",
}

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render returns the subject and HTML body for msg.
func Render(msg Message) (subject, body string, err error) {
	subject, ok := subjects[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
	data := map[string]any{"Name": msg.Name}
	for k, v := range msg.Data {
		data[k] = v
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(msg.Kind)+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s email: %w", msg.Kind, err)
	}
	return subject, buf.String(), nil
}
