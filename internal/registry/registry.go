// Package registry holds the immutable table of supported job boards: each
// provider id maps to its API client and static metadata.
package registry

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/jobboard"
)

// ErrUnknownProvider is returned for a provider id the registry does not hold.
var ErrUnknownProvider = eris.New("registry: unknown provider")

// Entry pairs a client with its metadata.
type Entry struct {
	Client   jobboard.Client
	Metadata Metadata
}

// Registry maps provider ids to entries. It is read-only after New.
type Registry struct {
	entries map[string]Entry
	ids     []string
}

// New builds a registry. Entries are keyed by Client.ID(); duplicates and
// mismatched metadata ids are rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Client == nil {
			return nil, eris.New("registry: entry without client")
		}
		id := e.Client.ID()
		if _, dup := r.entries[id]; dup {
			return nil, eris.Errorf("registry: duplicate provider %q", id)
		}
		if e.Metadata.ID == "" {
			e.Metadata.ID = id
		}
		if e.Metadata.ID != id {
			return nil, eris.Errorf("registry: metadata id %q does not match client %q", e.Metadata.ID, id)
		}
		r.entries[id] = e
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
	return r, nil
}

// Client returns the client for id.
func (r *Registry) Client(id string) (jobboard.Client, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownProvider, "provider %q", id)
	}
	return e.Client, nil
}

// Metadata returns the metadata for id.
func (r *Registry) Metadata(id string) (Metadata, error) {
	e, ok := r.entries[id]
	if !ok {
		return Metadata{}, eris.Wrapf(ErrUnknownProvider, "provider %q", id)
	}
	return e.Metadata, nil
}

// Supports reports whether id is registered.
func (r *Registry) Supports(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// IDs returns every provider id in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// AllMetadata returns metadata for every provider, sorted by id.
func (r *Registry) AllMetadata() []Metadata {
	out := make([]Metadata, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.entries[id].Metadata)
	}
	return out
}

// ByRegion returns metadata for providers serving region, sorted by id.
func (r *Registry) ByRegion(region string) []Metadata {
	var out []Metadata
	for _, id := range r.ids {
		if m := r.entries[id].Metadata; m.InRegion(region) {
			out = append(out, m)
		}
	}
	return out
}

// DisplayName returns the provider's display name, or id when unknown.
func (r *Registry) DisplayName(id string) string {
	if e, ok := r.entries[id]; ok && e.Metadata.DisplayName != "" {
		return e.Metadata.DisplayName
	}
	return id
}
