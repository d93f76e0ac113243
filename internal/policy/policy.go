// Package policy provides the policy corpus the compliance checker audits
// requirements against.
package policy

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Document is one policy statement in the corpus.
type Document struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Text     string `json:"text"`
	Source   string `json:"source"`
}

// Store searches for policies relevant to a query.
type Store interface {
	Search(ctx context.Context, query string, limit int) ([]Document, error)
	Add(ctx context.Context, doc Document) error
}

// LocalStore is an in-process Store using naive word-overlap scoring.
type LocalStore struct {
	mu        sync.RWMutex
	documents []Document
}

// NewLocalStore creates a store pre-seeded with the default policy corpus.
func NewLocalStore() *LocalStore {
	s := &LocalStore{}
	s.seedDefaults()
	return s
}

func (s *LocalStore) seedDefaults() {
	s.documents = []Document{
		{ID: "sep_duties", Category: "Security", Text: "The same person cannot initiate and approve a transaction.", Source: "Global Policy"},
		{ID: "auth", Category: "Security", Text: "All external actors (Customers) must use MFA.", Source: "IT Sec Standard"},
		{ID: "privacy", Category: "Data", Text: "No PII (Personally Identifiable Information) in clear text.", Source: "GDPR"},
		{ID: "specificity", Category: "Quality", Text: "Roles must be specific (e.g., 'Senior Risk Officer', not just 'Manager').", Source: "BA Handbook"},
		{ID: "flow", Category: "Logic", Text: "Process must have a clear success ending.", Source: "BA Handbook"},
		{ID: "loans", Category: "Business", Text: "Loan amounts over $1M require Risk Committee approval.", Source: "Credit Policy"},
		{ID: "audit", Category: "Compliance", Text: "All system changes must be logged in an immutable audit trail.", Source: "IT Ops"},
	}
}

// Search scores documents by word overlap with the query, boosting category
// mentions, and returns the top matches. When nothing matches it falls back
// to the leading generic policies so the checker always has context.
func (s *LocalStore) Search(_ context.Context, query string, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 3
	}
	if query == "" {
		return append([]Document(nil), s.documents[:min(limit, len(s.documents))]...), nil
	}

	queryLower := strings.ToLower(query)
	queryWords := wordSet(queryLower)

	type scored struct {
		score int
		doc   Document
	}
	ranked := make([]scored, 0, len(s.documents))
	for _, doc := range s.documents {
		score := len(intersect(queryWords, wordSet(strings.ToLower(doc.Text))))
		if strings.Contains(queryLower, strings.ToLower(doc.Category)) {
			score += 2
		}
		ranked = append(ranked, scored{score: score, doc: doc})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var results []Document
	for _, r := range ranked {
		if r.score > 0 {
			results = append(results, r.doc)
		}
	}
	if len(results) == 0 {
		return append([]Document(nil), s.documents[:min(limit, len(s.documents))]...), nil
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Add appends a policy to the corpus.
func (s *LocalStore) Add(_ context.Context, doc Document) error {
	s.mu.Lock()
	s.documents = append(s.documents, doc)
	s.mu.Unlock()
	return nil
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(text)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for w := range a {
		if _, ok := b[w]; ok {
			out[w] = struct{}{}
		}
	}
	return out
}
