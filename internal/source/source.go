// Package source resolves activity URIs to providers and correlates the same
// real-world activity across providers via fingerprint matching.
package source

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Fingerprint approximately identifies one real-world activity across
// independent providers.
type Fingerprint struct {
	Date        time.Time // calendar day of the activity start
	ElapsedTime time.Duration
	Distance    float64 // meters
}

// Tolerances for fingerprint matching.
const (
	elapsedTolerance  = 60 * time.Second
	distanceTolerance = 100.0 // meters
)

// MatchesCandidate reports whether a candidate activity's elapsed time and
// distance fall within the fingerprint tolerances. The calendar-day check is
// the provider query's responsibility.
func (fp Fingerprint) MatchesCandidate(elapsed time.Duration, distance float64) bool {
	if d := elapsed - fp.ElapsedTime; d > elapsedTolerance || d < -elapsedTolerance {
		return false
	}
	if d := distance - fp.Distance; d > distanceTolerance || d < -distanceTolerance {
		return false
	}
	return true
}

// Source is one provider of activity payloads.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Matches reports whether this source can serve the given URI, either by
	// its native scheme or by a recognised web host.
	Matches(uri string) bool
	// Read fetches the raw activity payload for an accepted URI.
	Read(ctx context.Context, uri string) ([]byte, error)
	// FindByFingerprint locates an activity by approximate identity and
	// returns its native URI, or "" when the source has no match.
	FindByFingerprint(ctx context.Context, fp Fingerprint) (string, error)
}

// UnresolvedSourceError reports that no registered source accepts a URI.
type UnresolvedSourceError struct {
	URI string
}

func (e *UnresolvedSourceError) Error() string {
	return fmt.Sprintf("no source found for URI %s", e.URI)
}

// NoDownstreamMatchError reports that a delegating source found no downstream
// activity satisfying the fingerprint.
type NoDownstreamMatchError struct {
	URI string
}

func (e *NoDownstreamMatchError) Error() string {
	return fmt.Sprintf("no downstream source found for activity %s", e.URI)
}

// matchesURI implements the shared match rule: the URI's scheme equals the
// source's native scheme, or its host is one of the source's web hosts.
func matchesURI(uri, scheme string, hosts []string) bool {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false
	}
	if parsed.Scheme == scheme {
		return true
	}
	return slices.Contains(hosts, parsed.Hostname())
}

// lastPathSegment extracts the trailing path element of a web activity link.
func lastPathSegment(parsed *url.URL) string {
	path := parsed.Path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
