// Package compose builds outgoing MIME messages in the provider's raw
// (base64url) submission format.
package compose

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/loommail/backend/internal/models"
)

// Request describes an outgoing message. A non-empty ThreadID makes it a
// reply: the subject gains a Re: prefix and InReplyTo, when known, becomes
// the In-Reply-To/References headers.
type Request struct {
	From        string
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	HTML        string
	ThreadID    string
	InReplyTo   string
	Attachments []models.Attachment
	DraftID     string
}

// BuildRaw renders the request as a base64url-encoded RFC 2822 message ready
// for provider submission.
func BuildRaw(req *Request) (string, error) {
	if req.From == "" {
		return "", fmt.Errorf("from address is required")
	}
	if len(req.To) == 0 {
		return "", fmt.Errorf("at least one recipient is required")
	}

	subject := req.Subject
	if req.ThreadID != "" && !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}

	builder := enmime.Builder().
		From("", req.From).
		ToAddrs(toAddresses(req.To)).
		Subject(subject).
		HTML([]byte(req.HTML))

	if len(req.CC) > 0 {
		builder = builder.CCAddrs(toAddresses(req.CC))
	}
	if len(req.BCC) > 0 {
		builder = builder.BCCAddrs(toAddresses(req.BCC))
	}

	if req.InReplyTo != "" {
		builder = builder.
			Header("In-Reply-To", req.InReplyTo).
			Header("References", req.InReplyTo)
	}

	for _, attachment := range req.Attachments {
		builder = builder.AddAttachment(attachment.Data, attachment.MimeType, attachment.Filename)
	}

	part, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func toAddresses(addrs []string) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, mail.Address{Address: addr})
	}
	return out
}
