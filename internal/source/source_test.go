package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/stravasensor/internal/garmin"
)

type stubGarminAPI struct {
	downloads  map[string][]byte
	activities []garmin.Activity

	searchFrom time.Time
	searchTo   time.Time
}

func (s *stubGarminAPI) DownloadActivity(_ context.Context, id string) ([]byte, error) {
	return s.downloads[id], nil
}

func (s *stubGarminAPI) ActivitiesByDate(_ context.Context, from, to time.Time) ([]garmin.Activity, error) {
	s.searchFrom, s.searchTo = from, to
	return s.activities, nil
}

func newTestRegistry(garminAPI GarminAPI, stravaAPI StravaAPI) *Registry {
	var registry *Registry
	stravaSource := NewStravaSource(stravaAPI, func() []Source {
		return registry.Sources()
	})
	registry = NewRegistry(
		NewFileSource(),
		NewGarminSource(garminAPI),
		stravaSource,
	)
	return registry
}

func TestRegistryResolvesBySchemeAndHost(t *testing.T) {
	registry := newTestRegistry(&stubGarminAPI{}, nil)

	cases := map[string]string{
		"file:///tmp/activity.fit":                        "file",
		"garmin://19732762518":                            "garmin",
		"https://connect.garmin.com/modern/activity/1973": "garmin",
		"strava://15544543638":                            "strava",
		"https://www.strava.com/activities/15544543638":   "strava",
		"https://strava.com/activities/15544543638":       "strava",
	}
	for uri, want := range cases {
		src, err := registry.Resolve(uri)
		require.NoError(t, err, uri)
		require.Equal(t, want, src.Name(), uri)
	}
}

func TestRegistryRejectsUnknownURIs(t *testing.T) {
	registry := newTestRegistry(&stubGarminAPI{}, nil)

	for _, uri := range []string{
		"ftp://example.com/activity.fit",
		"https://example.com/activities/123",
		"not a uri at all",
	} {
		_, err := registry.Resolve(uri)
		var unresolved *UnresolvedSourceError
		require.ErrorAs(t, err, &unresolved, uri)
	}
}

func TestFingerprintTolerances(t *testing.T) {
	fp := Fingerprint{
		Date:        time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC),
		ElapsedTime: 3600 * time.Second,
		Distance:    50000,
	}

	require.True(t, fp.MatchesCandidate(3600*time.Second, 50000))
	require.True(t, fp.MatchesCandidate(3550*time.Second, 50050))
	require.True(t, fp.MatchesCandidate(3660*time.Second, 49900))
	require.False(t, fp.MatchesCandidate(3530*time.Second, 50000))
	require.False(t, fp.MatchesCandidate(3600*time.Second, 50101))
}

func TestFileSourceReadsLocalPayloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activity.fit")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))

	src := NewFileSource()
	data, err := src.Read(context.Background(), "file://"+path)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	match, err := src.FindByFingerprint(context.Background(), Fingerprint{})
	require.NoError(t, err)
	require.Empty(t, match)
}

func TestGarminSourceFindsActivityByFingerprint(t *testing.T) {
	api := &stubGarminAPI{
		activities: []garmin.Activity{
			{ID: 1, Duration: 1200, Distance: 10000},
			{ID: 2, Duration: 3580, Distance: 50080},
			{ID: 3, Duration: 3600, Distance: 50000},
		},
	}
	src := NewGarminSource(api)

	fp := Fingerprint{
		Date:        time.Date(2025, time.June, 14, 9, 30, 0, 0, time.UTC),
		ElapsedTime: 3600 * time.Second,
		Distance:    50000,
	}
	match, err := src.FindByFingerprint(context.Background(), fp)
	require.NoError(t, err)
	require.Equal(t, "garmin://2", match)

	// Search window spans the fingerprint's calendar day.
	require.Equal(t, 24*time.Hour, api.searchTo.Sub(api.searchFrom))
}

func TestGarminSourceFingerprintMiss(t *testing.T) {
	api := &stubGarminAPI{
		activities: []garmin.Activity{
			{ID: 1, Duration: 1200, Distance: 10000},
		},
	}
	src := NewGarminSource(api)

	match, err := src.FindByFingerprint(context.Background(), Fingerprint{
		ElapsedTime: 3600 * time.Second,
		Distance:    50000,
	})
	require.NoError(t, err)
	require.Empty(t, match)
}
