package platforms

import (
	"net/http"
	"sort"
)

// Registry maps platform identifiers to publishers. It is built once and
// read-only afterwards.
type Registry struct {
	publishers map[string]Publisher
}

// NewRegistry builds a registry from an explicit mapping.
func NewRegistry(publishers map[string]Publisher) *Registry {
	m := make(map[string]Publisher, len(publishers))
	for id, p := range publishers {
		m[id] = p
	}
	return &Registry{publishers: m}
}

// Options configures the default publisher set.
type Options struct {
	// HTTPClient is the base client for REST platforms; nil means http.DefaultClient.
	HTTPClient *http.Client
}

// NewDefaultRegistry wires every supported platform.
func NewDefaultRegistry(opts Options) *Registry {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return NewRegistry(map[string]Publisher{
		X:         NewXPublisher(hc),
		Nostr:     NewNostrPublisher(hc),
		LinkedIn:  NewLinkedInPublisher(),
		Bluesky:   NewBlueskyPublisher(hc),
		Mastodon:  NewMastodonPublisher(hc),
		Facebook:  NewFacebookPublisher(hc),
		Instagram: NewInstagramPublisher(),
	})
}

// Lookup returns the publisher for id. Unknown ids yield (nil, false).
func (r *Registry) Lookup(id string) (Publisher, bool) {
	p, ok := r.publishers[id]
	return p, ok
}

// Platforms returns the registered identifiers, sorted.
func (r *Registry) Platforms() []string {
	ids := make([]string, 0, len(r.publishers))
	for id := range r.publishers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
