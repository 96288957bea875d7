package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/loommail/backend/internal/models"
)

// MessageLister pulls recent messages from the provider for mirror refresh.
type MessageLister interface {
	ListMessagesSince(ctx context.Context, accessToken, owner string, since time.Time) ([]*models.Message, error)
}

// ListMessagesSince fetches every message received or sent after the given
// instant and maps it to the mirror shape. The provider's after: operator has
// day granularity on dates, so the query uses epoch seconds.
func (g *Gmail) ListMessagesSince(ctx context.Context, accessToken, owner string, since time.Time) ([]*models.Message, error) {
	svc, err := g.mailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("after:%d", since.Unix())

	var messages []*models.Message
	pageToken := ""
	for {
		call := svc.Users.Messages.List("me").Q(query).MaxResults(100).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, ref := range page.Messages {
			full, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
			if err != nil {
				return nil, fmt.Errorf("failed to fetch message %s: %w", ref.Id, err)
			}
			messages = append(messages, mapMessage(full, owner))
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return messages, nil
}

func mapMessage(msg *gmail.Message, owner string) *models.Message {
	mirrored := &models.Message{
		MessageID:   msg.Id,
		ThreadID:    msg.ThreadId,
		DeliveredTo: owner,
		Snippet:     msg.Snippet,
		Date:        time.UnixMilli(msg.InternalDate).UTC(),
		LabelIDs:    msg.LabelIds,
	}

	if msg.Payload == nil {
		return mirrored
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			mirrored.From = header.Value
		case "to":
			mirrored.To = header.Value
		case "cc":
			mirrored.CC = header.Value
		case "bcc":
			mirrored.BCC = header.Value
		case "subject":
			mirrored.Subject = header.Value
		case "date":
			if parsed, err := mail.ParseDate(header.Value); err == nil {
				mirrored.Date = parsed.UTC()
			}
		}
	}

	collectParts(msg.Payload, mirrored)
	return mirrored
}

// collectParts walks the MIME tree picking the first text and HTML bodies
// and recording attachment metadata. Attachment bytes stay at the provider.
func collectParts(part *gmail.MessagePart, mirrored *models.Message) {
	if part.Filename != "" {
		mirrored.Attachments = append(mirrored.Attachments, models.Attachment{
			Filename: part.Filename,
			MimeType: part.MimeType,
		})
	} else if part.Body != nil && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(part.Body.Data)
		if err == nil {
			switch part.MimeType {
			case "text/html":
				if mirrored.HTML == "" {
					mirrored.HTML = string(decoded)
				}
			case "text/plain":
				if mirrored.Text == "" {
					mirrored.Text = string(decoded)
				}
			}
		}
	}

	for _, child := range part.Parts {
		collectParts(child, mirrored)
	}
}
