package source

import (
	"context"
	"log"
	"strconv"

	"example.com/stravasensor/internal/strava"
)

// StravaAPI is the slice of the Strava client the source needs.
type StravaAPI interface {
	ActivityDetail(ctx context.Context, id int64) (strava.ActivityDetail, error)
}

// StravaSource is a delegating source. Strava only serves processed activity
// streams, not the original device upload, so Read fetches the activity's
// metadata, fingerprints it and hands the actual payload read to whichever
// downstream source holds a matching activity.
type StravaSource struct {
	api        StravaAPI
	downstream func() []Source
	logger     *log.Logger
}

// NewStravaSource builds a StravaSource. downstream supplies the ordered
// sources to delegate to; it is evaluated per read so the source can be
// constructed before the registry that contains it.
func NewStravaSource(api StravaAPI, downstream func() []Source) *StravaSource {
	return &StravaSource{
		api:        api,
		downstream: downstream,
		logger:     log.New(log.Writer(), "[strava-source] ", log.LstdFlags),
	}
}

func (s *StravaSource) Name() string { return "strava" }

func (s *StravaSource) Matches(uri string) bool {
	return matchesURI(uri, SchemeStrava, []string{"www.strava.com", "strava.com"})
}

// Read resolves the Strava activity to its original upload on a downstream
// source. The first downstream match in registration order wins.
func (s *StravaSource) Read(ctx context.Context, uri string) ([]byte, error) {
	rawID, err := activityID(uri, SchemeStrava)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, &UnresolvedSourceError{URI: uri}
	}

	detail, err := s.api.ActivityDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint{
		Date:        detail.StartDate,
		ElapsedTime: detail.ElapsedTime,
		Distance:    detail.Distance,
	}

	for _, candidate := range s.downstream() {
		if candidate == Source(s) {
			continue
		}
		match, err := candidate.FindByFingerprint(ctx, fp)
		if err != nil {
			s.logger.Printf("fingerprint search on %s failed: %v", candidate.Name(), err)
			continue
		}
		if match == "" {
			continue
		}
		s.logger.Printf("activity %s resolved to %s", uri, match)
		return candidate.Read(ctx, match)
	}
	return nil, &NoDownstreamMatchError{URI: uri}
}

// FindByFingerprint always misses. Strava never serves raw payloads, so it is
// not a delegation target.
func (s *StravaSource) FindByFingerprint(context.Context, Fingerprint) (string, error) {
	return "", nil
}
