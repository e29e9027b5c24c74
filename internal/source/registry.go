package source

import (
	"log"
)

// Registry owns the ordered list of activity sources. Registration order
// matters: sources able to serve raw payloads must precede delegating ones so
// fingerprint searches have candidates.
type Registry struct {
	sources []Source
	logger  *log.Logger
}

// NewRegistry builds a Registry over the given sources in registration order.
func NewRegistry(sources ...Source) *Registry {
	return &Registry{
		sources: sources,
		logger:  log.New(log.Writer(), "[source] ", log.LstdFlags),
	}
}

// Resolve returns the first registered source whose match predicate accepts
// the URI.
func (r *Registry) Resolve(uri string) (Source, error) {
	for _, src := range r.sources {
		if src.Matches(uri) {
			r.logger.Printf("resolved %s to %s", uri, src.Name())
			return src, nil
		}
	}
	return nil, &UnresolvedSourceError{URI: uri}
}

// Sources exposes the registered sources as a read-only view for delegation.
func (r *Registry) Sources() []Source {
	return r.sources
}
