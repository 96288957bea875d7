// Package search implements the mailbox search mini-language: a flat string
// of "key:value" terms (is:, from:, to:, subject:, filename:, category:) that
// degrades to free text when no key is present.
package search

import (
	"sort"
	"strings"
)

// Keys are the recognized search prefixes, matched anywhere in the string.
var Keys = []string{
	"from:",
	"receiver:",
	"is:",
	"subject:",
	"to:",
	"filename:",
	"category:",
}

// KeyText is the pseudo-key a query collapses to when no real key matched.
const KeyText = "text"

// Term is one parsed key/value pair. Value keeps interior spacing; only the
// trailing whitespace is stripped, so "from:ann " still reports an in-progress
// value for suggestion purposes.
type Term struct {
	Key   string
	Value string
}

// Query is an ordered list of parsed terms. Order follows the position of
// each key in the raw string, which matters because later terms override
// earlier ones during filter translation.
type Query struct {
	Terms []Term
}

// Parse splits a raw search string into ordered terms. A string without any
// recognized key becomes a single free-text term, so every input parses.
func Parse(raw string) *Query {
	type hit struct {
		key      string
		position int
	}

	var hits []hit
	for _, key := range Keys {
		index := strings.Index(raw, key)
		if index == -1 {
			continue
		}
		hits = append(hits, hit{key: key, position: index})
	}

	if len(hits) == 0 {
		return &Query{Terms: []Term{{Key: KeyText, Value: raw}}}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].position < hits[j].position })

	query := &Query{}
	for _, h := range hits {
		start := h.position + len(h.key)
		end := len(raw)
		for _, otherKey := range Keys {
			otherIndex := strings.Index(raw[start:], otherKey)
			if otherIndex != -1 && start+otherIndex < end {
				end = start + otherIndex
			}
		}
		query.Terms = append(query.Terms, Term{
			Key:   strings.TrimSuffix(h.key, ":"),
			Value: strings.TrimRight(raw[start:end], " \t"),
		})
	}

	return query
}

// Get returns the value of the first term with the given key.
func (q *Query) Get(key string) (string, bool) {
	for _, term := range q.Terms {
		if term.Key == key {
			return term.Value, true
		}
	}
	return "", false
}

// Last returns the final term, the one the user is still typing.
func (q *Query) Last() (Term, bool) {
	if len(q.Terms) == 0 {
		return Term{}, false
	}
	return q.Terms[len(q.Terms)-1], true
}

// IsFreeText reports whether the query carries no recognized key at all.
func (q *Query) IsFreeText() bool {
	_, ok := q.Get(KeyText)
	return ok
}
