// Package webhook receives Strava push events, verifies their origin and
// dispatches activity processing without blocking the delivery response.
package webhook

import (
	"fmt"
)

// Aspect and object types carried by Strava push events.
const (
	ObjectActivity = "activity"
	ObjectAthlete  = "athlete"

	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// Event is one Strava push event delivery.
type Event struct {
	ObjectType     string            `json:"object_type"`
	ObjectID       int64             `json:"object_id"`
	AspectType     string            `json:"aspect_type"`
	OwnerID        int64             `json:"owner_id"`
	SubscriptionID int64             `json:"subscription_id"`
	EventTime      int64             `json:"event_time"`
	Updates        map[string]string `json:"updates,omitempty"`
}

// Validate checks the structural fields Strava promises on every delivery.
func (e Event) Validate() error {
	switch e.ObjectType {
	case ObjectActivity, ObjectAthlete:
	default:
		return fmt.Errorf("unknown object_type %q", e.ObjectType)
	}
	switch e.AspectType {
	case AspectCreate, AspectUpdate, AspectDelete:
	default:
		return fmt.Errorf("unknown aspect_type %q", e.AspectType)
	}
	if e.ObjectID == 0 {
		return fmt.Errorf("missing object_id")
	}
	return nil
}
