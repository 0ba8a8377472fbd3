// Package parser turns a free-text retrieval query into the term plan the
// lexical pass executes.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/internal/indexer/tokenizer"
)

// QueryPlan is a disjunctive query: a chunk matches when it contains any
// of Terms.
type QueryPlan struct {
	// Terms are stemmed and de-duplicated, in order of first appearance.
	Terms    []string
	RawQuery string
	// Normalized is the folded, whitespace-collapsed query text. Queries
	// that differ only in case, accents or spacing share it.
	Normalized string
}

// Empty reports whether the plan has nothing to match.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:    make([]string, 0),
		RawQuery: query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	plan.Normalized = strings.Join(tokenizer.Words(query), " ")

	seen := make(map[string]struct{})
	for _, term := range tokenizer.Terms(query) {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		plan.Terms = append(plan.Terms, term)
	}
	return plan
}
