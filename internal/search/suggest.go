package search

import (
	"context"
	"fmt"
	"strings"
)

// Suggestion is one search-bar completion entry.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ID          int    `json:"id"`
}

// AddressLister supplies recent correspondent addresses for completion.
type AddressLister interface {
	RecentSenders(ctx context.Context, owner string) ([]string, error)
	RecentRecipients(ctx context.Context, owner string) ([]string, error)
}

// Suggester completes partial search queries against the owner's mailbox.
type Suggester struct {
	Addresses  AddressLister
	Categories []string
}

var defaultCommands = []Suggestion{
	{Name: "is: - Sent, unread, spam, todo, done", Description: "is: - Sent, unread, spam, todo, done", ID: 1},
	{Name: "from: specify the sender", Description: "from: specify the sender", ID: 1},
	{Name: "subject: search by subject", Description: "subject: search by subject", ID: 1},
	{Name: "to: find a receiver", Description: "to: find a receiver", ID: 1},
	{Name: "filename: find by file name", Description: "filename: find by file name", ID: 1},
	{Name: "category: specify the category", Description: "category: specify the category", ID: 1},
}

var isCommands = []Suggestion{
	{Name: "is: todo", Description: "is: todo", ID: 1},
	{Name: "is: done", Description: "is: done", ID: 2},
	{Name: "is: sent", Description: "is: sent", ID: 3},
	{Name: "is: unread", Description: "is: unread", ID: 4},
	{Name: "is: inbox", Description: "is: inbox", ID: 5},
	{Name: "is: spam", Description: "is: spam", ID: 6},
	{Name: "is: draft", Description: "is: draft", ID: 7},
}

var keyCommands = map[string][]Suggestion{
	"is":       isCommands,
	"from":     {{Name: "from: specify the sender", Description: "from: specify the sender", ID: 1}},
	"subject":  {{Name: "subject: search by subject", Description: "subject: search by subject", ID: 1}},
	"to":       {{Name: "to: find a receiver", Description: "to: find a receiver", ID: 1}},
	"filename": {{Name: "filename: find by file name", Description: "filename: find by file name", ID: 1}},
	"category": {{Name: "category: specify the category", Description: "category: specify the category", ID: 1}},
}

// Suggest returns completions for a partial query. An empty query lists the
// available keys; a trailing key with no value lists that key's commands; a
// key with an in-progress value completes it from the mailbox (addresses for
// from/to, the category list for category). Free text falls back to matching
// commands, then to correspondent addresses.
func (s *Suggester) Suggest(ctx context.Context, rawQuery, owner string) ([]Suggestion, error) {
	if rawQuery == "" {
		return defaultCommands, nil
	}

	query := Parse(rawQuery)

	if query.IsFreeText() {
		return s.suggestFreeText(ctx, rawQuery, owner)
	}

	last, _ := query.Last()
	value := strings.TrimSpace(last.Value)

	if value == "" {
		if commands, ok := keyCommands[last.Key]; ok {
			return commands, nil
		}
		return isCommands, nil
	}

	switch last.Key {
	case "is":
		return isCommands, nil
	case "category":
		return s.suggestCategories(rawQuery, value)
	case "from":
		addresses, err := s.Addresses.RecentSenders(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to list senders: %w", err)
		}
		return completeInQuery(rawQuery, value, addresses), nil
	case "to", "receiver":
		addresses, err := s.Addresses.RecentRecipients(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to list recipients: %w", err)
		}
		return completeInQuery(rawQuery, value, addresses), nil
	}

	// Subject, filename and the like have nothing to complete from; echo the
	// parsed terms back so the client can show what will be searched.
	var suggestions []Suggestion
	for _, term := range query.Terms {
		entry := term.Key + ":" + term.Value
		suggestions = append(suggestions, Suggestion{Name: entry, Description: entry})
	}
	return suggestions, nil
}

func (s *Suggester) suggestFreeText(ctx context.Context, text, owner string) ([]Suggestion, error) {
	var matches []Suggestion
	for _, command := range defaultCommands {
		if strings.Contains(command.Name, text) {
			matches = append(matches, command)
		}
	}
	if len(matches) > 0 {
		return matches, nil
	}

	senders, err := s.Addresses.RecentSenders(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list senders: %w", err)
	}
	recipients, err := s.Addresses.RecentRecipients(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	seen := map[string]struct{}{}
	var suggestions []Suggestion
	for _, address := range append(senders, recipients...) {
		if address == owner {
			continue
		}
		if _, dup := seen[address]; dup {
			continue
		}
		seen[address] = struct{}{}
		if !strings.Contains(address, text) {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			Name:        address,
			Description: address,
			ID:          len(suggestions) + 1,
		})
	}
	return suggestions, nil
}

func (s *Suggester) suggestCategories(rawQuery, value string) ([]Suggestion, error) {
	var suggestions []Suggestion
	for _, category := range s.Categories {
		if !strings.Contains(strings.ToLower(category), strings.ToLower(value)) {
			continue
		}
		completed := strings.Replace(rawQuery, value, category, 1)
		suggestions = append(suggestions, Suggestion{
			Name:        completed,
			Description: completed,
			ID:          len(suggestions) + 1,
		})
	}
	return suggestions, nil
}

// completeInQuery substitutes each candidate containing the in-progress value
// into the raw query, preserving whatever other terms surround it.
func completeInQuery(rawQuery, value string, candidates []string) []Suggestion {
	seen := map[string]struct{}{}
	var suggestions []Suggestion
	for _, candidate := range candidates {
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		if !strings.Contains(candidate, value) {
			continue
		}
		completed := strings.Replace(rawQuery, value, candidate, 1)
		suggestions = append(suggestions, Suggestion{
			Name:        completed,
			Description: completed,
			ID:          len(suggestions) + 1,
		})
	}
	return suggestions
}
