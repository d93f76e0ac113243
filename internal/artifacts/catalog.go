package artifacts

import (
	"encoding/json"

	"github.com/ashureev/elicit/internal/domain"
)

// EditStrategy validates user-submitted artifact content and normalizes it
// into the stored representation.
type EditStrategy interface {
	ValidateAndParse(raw json.RawMessage) (json.RawMessage, error)
}

// ReverseSyncer projects facts from edited artifact content back into the
// ledger. Returns true when the ledger changed. Edit strategies implement
// this optionally.
type ReverseSyncer interface {
	ApplyReverseSync(state *domain.SessionState, content json.RawMessage) bool
}

// Entry bundles every per-type behavior for one artifact type.
// Any field may be nil when the type does not support that operation.
type Entry struct {
	Title     string
	Generator Generator
	Validator Validator
	Search    SearchStrategy
	Edit      EditStrategy
}

// Catalog is the single registry resolving artifact types to behavior.
// Unknown types resolve to the configured fallback entry, so the
// "unknown type" policy lives here and nowhere else.
type Catalog struct {
	entries  map[string]Entry
	fallback Entry
}

// NewCatalog creates a catalog with the given fallback entry.
func NewCatalog(fallback Entry) *Catalog {
	return &Catalog{entries: make(map[string]Entry), fallback: fallback}
}

// Register binds an artifact type to its behaviors.
func (c *Catalog) Register(artifactType string, entry Entry) {
	c.entries[artifactType] = entry
}

// Resolve returns the entry for the type, or the fallback. The second
// return reports whether the type was explicitly registered.
func (c *Catalog) Resolve(artifactType string) (Entry, bool) {
	if entry, ok := c.entries[artifactType]; ok {
		return entry, true
	}
	return c.fallback, false
}

// Types lists every registered artifact type.
func (c *Catalog) Types() []string {
	types := make([]string, 0, len(c.entries))
	for t := range c.entries {
		types = append(types, t)
	}
	return types
}
