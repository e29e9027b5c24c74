package source

import (
	"net/url"
)

// Schemes natively understood by the registered sources.
const (
	SchemeFile   = "file"
	SchemeGarmin = "garmin"
	SchemeStrava = "strava"
)

// Reference is an opaque activity locator: a native scheme plus a
// provider-side identifier.
type Reference struct {
	Scheme string
	ID     string
}

// URI renders the reference in its native form.
func (r Reference) URI() string {
	return r.Scheme + "://" + r.ID
}

// activityID extracts the provider activity identifier from an accepted URI:
// the host part of a native-scheme URI, or the last path segment of a web
// link.
func activityID(uri, scheme string) (string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case scheme:
		return parsed.Host, nil
	case "https", "http":
		return lastPathSegment(parsed), nil
	}
	return "", &UnresolvedSourceError{URI: uri}
}
