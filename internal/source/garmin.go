package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"example.com/stravasensor/internal/garmin"
)

// GarminAPI is the slice of the Garmin Connect client the source needs.
type GarminAPI interface {
	DownloadActivity(ctx context.Context, id string) ([]byte, error)
	ActivitiesByDate(ctx context.Context, from, to time.Time) ([]garmin.Activity, error)
}

// GarminSource serves activity payloads from Garmin Connect. It accepts
// garmin:// URIs and connect.garmin.com activity links, and answers
// fingerprint searches from the account's activity list.
type GarminSource struct {
	api    GarminAPI
	logger *log.Logger
}

// NewGarminSource builds a GarminSource over a Garmin Connect client.
func NewGarminSource(api GarminAPI) *GarminSource {
	return &GarminSource{
		api:    api,
		logger: log.New(log.Writer(), "[garmin-source] ", log.LstdFlags),
	}
}

func (s *GarminSource) Name() string { return "garmin" }

func (s *GarminSource) Matches(uri string) bool {
	return matchesURI(uri, SchemeGarmin, []string{"connect.garmin.com"})
}

func (s *GarminSource) Read(ctx context.Context, uri string) ([]byte, error) {
	id, err := activityID(uri, SchemeGarmin)
	if err != nil {
		return nil, err
	}
	return s.api.DownloadActivity(ctx, id)
}

// FindByFingerprint lists the account's activities on the fingerprint's
// calendar day and returns the first one within tolerance.
func (s *GarminSource) FindByFingerprint(ctx context.Context, fp Fingerprint) (string, error) {
	day := fp.Date.Truncate(24 * time.Hour)
	activities, err := s.api.ActivitiesByDate(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return "", err
	}

	for _, activity := range activities {
		elapsed := time.Duration(activity.Duration * float64(time.Second))
		if fp.MatchesCandidate(elapsed, activity.Distance) {
			uri := Reference{Scheme: SchemeGarmin, ID: fmt.Sprintf("%d", activity.ID)}.URI()
			s.logger.Printf("fingerprint matched activity %s", uri)
			return uri, nil
		}
	}
	return "", nil
}
