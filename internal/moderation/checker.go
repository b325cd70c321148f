// Package moderation implements the content-moderation collaborator
// consumed by the delivery pipeline. The production system delegates to
// a trust service; this in-process blocklist checker keeps the same
// contract: given raw text, accept or reject with the offending term.
package moderation

import "strings"

// Checker decides whether message content may be sent. Rejected reports
// the first offending term found; term is empty when ok.
type Checker interface {
	Check(content string) (term string, ok bool)
}

// BlocklistChecker rejects content containing any blocked term,
// case-insensitively and ignoring surrounding punctuation.
type BlocklistChecker struct {
	terms []string
}

// defaultTerms covers the scam patterns the marketplace rejects out of
// the box; deployments extend the list through configuration.
var defaultTerms = []string{
	"wire transfer",
	"western union",
	"cashier check",
	"overpay",
}

// NewBlocklistChecker builds a checker from the default terms plus any
// extra configured ones.
func NewBlocklistChecker(extra []string) *BlocklistChecker {
	terms := make([]string, 0, len(defaultTerms)+len(extra))
	terms = append(terms, defaultTerms...)
	for _, t := range extra {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	return &BlocklistChecker{terms: terms}
}

func (c *BlocklistChecker) Check(content string) (string, bool) {
	lowered := strings.ToLower(content)
	for _, term := range c.terms {
		if strings.Contains(lowered, term) {
			return term, false
		}
	}
	return "", true
}
