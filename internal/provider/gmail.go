// Package provider is the gateway to the external mail provider. Every
// mutation in the mailbox core goes through here first; the local mirror is
// only updated after the provider has confirmed the change.
package provider

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/loommail/backend/internal/models"
)

// Gateway is the provider surface the mailbox core depends on. Credentials
// are per-call: every operation acts on behalf of one user's access token.
type Gateway interface {
	ModifyLabels(ctx context.Context, accessToken, messageID string, add, remove []string) ([]string, error)
	TrashThread(ctx context.Context, accessToken, threadID string) error
	SendMessage(ctx context.Context, accessToken, raw, threadID string) (messageID string, newThreadID string, err error)
	DeleteDraft(ctx context.Context, accessToken, draftID string) error
}

// Authenticator validates and refreshes provider credentials for the
// realtime connection handshake.
type Authenticator interface {
	Introspect(ctx context.Context, accessToken string) (*models.Identity, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// Gmail implements Gateway and Authenticator against the Gmail API.
type Gmail struct {
	oauth *oauth2.Config
}

// NewGmail builds the gateway from the application's OAuth client pair.
func NewGmail(clientID, clientSecret string) *Gmail {
	return &Gmail{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     googleoauth.Endpoint,
			Scopes: []string{
				gmail.GmailModifyScope,
				gmail.GmailComposeScope,
			},
		},
	}
}

func (g *Gmail) mailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create mail service: %w", err)
	}
	return svc, nil
}

// ModifyLabels applies a label change at the provider and returns the
// message's resulting label set.
func (g *Gmail) ModifyLabels(ctx context.Context, accessToken, messageID string, add, remove []string) ([]string, error) {
	svc, err := g.mailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	msg, err := svc.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to modify labels: %w", err)
	}

	return msg.LabelIds, nil
}

// TrashThread moves the whole conversation to the provider's trash.
// Permanent deletion stays with the provider's own retention rules.
func (g *Gmail) TrashThread(ctx context.Context, accessToken, threadID string) error {
	svc, err := g.mailService(ctx, accessToken)
	if err != nil {
		return err
	}

	if _, err := svc.Users.Threads.Trash("me", threadID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash thread: %w", err)
	}

	return nil
}

// SendMessage submits a raw RFC 2822 message (base64url encoded). A non-empty
// threadID threads the message into an existing conversation.
func (g *Gmail) SendMessage(ctx context.Context, accessToken, raw, threadID string) (string, string, error) {
	svc, err := g.mailService(ctx, accessToken)
	if err != nil {
		return "", "", err
	}

	msg := &gmail.Message{Raw: raw}
	if threadID != "" {
		msg.ThreadId = threadID
	}

	sent, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", "", fmt.Errorf("failed to send message: %w", err)
	}

	return sent.Id, sent.ThreadId, nil
}

// DeleteDraft removes a provider draft, typically right after it was sent.
func (g *Gmail) DeleteDraft(ctx context.Context, accessToken, draftID string) error {
	svc, err := g.mailService(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Users.Drafts.Delete("me", draftID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}

	return nil
}

// Introspect validates an access token against the provider's userinfo
// endpoint and returns the stable subject plus the mailbox address.
func (g *Gmail) Introspect(ctx context.Context, accessToken string) (*models.Identity, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to introspect token: %w", err)
	}

	return &models.Identity{Subject: info.Id, Email: info.Email}, nil
}

// RefreshAccessToken exchanges a refresh token for a fresh access token.
func (g *Gmail) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	source := g.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	return token.AccessToken, nil
}
