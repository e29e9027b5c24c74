package webhook

import (
	"context"
	"log"
	"strconv"
	"time"

	"example.com/stravasensor/internal/fitfile"
	"example.com/stravasensor/internal/source"
)

// Publisher forwards device statuses to the state bus.
type Publisher interface {
	PublishDeviceStatus(status fitfile.DeviceStatus) bool
}

// Processor handles push events end to end: resolve the activity URI, fetch
// the original upload, parse it and publish every device status it carries.
// Failures are logged and swallowed; a delivery is never retried by us.
type Processor struct {
	registry  *source.Registry
	publisher Publisher
	timeout   time.Duration
	logger    *log.Logger
}

// NewProcessor builds a Processor. timeout bounds the processing of a single
// event.
func NewProcessor(registry *source.Registry, publisher Publisher, timeout time.Duration) *Processor {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Processor{
		registry:  registry,
		publisher: publisher,
		timeout:   timeout,
		logger:    log.New(log.Writer(), "[processor] ", log.LstdFlags),
	}
}

// HandleEvent processes one event. Only activity creations carry new device
// data; everything else is acknowledged and dropped.
func (p *Processor) HandleEvent(event Event) {
	if event.ObjectType != ObjectActivity || event.AspectType != AspectCreate {
		p.logger.Printf("ignoring %s %s event for object %d", event.ObjectType, event.AspectType, event.ObjectID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	uri := source.Reference{Scheme: source.SchemeStrava, ID: strconv.FormatInt(event.ObjectID, 10)}.URI()
	if err := p.processActivity(ctx, uri); err != nil {
		p.logger.Printf("failed to process activity %s: %v", uri, err)
		eventsFailed.Inc()
		return
	}
	eventsProcessed.Inc()
}

func (p *Processor) processActivity(ctx context.Context, uri string) error {
	src, err := p.registry.Resolve(uri)
	if err != nil {
		return err
	}
	payload, err := src.Read(ctx, uri)
	if err != nil {
		return err
	}

	activity, err := fitfile.Parse(payload)
	if err != nil {
		return err
	}

	statuses := activity.DeviceStatuses()
	p.logger.Printf("activity %s carries %d device statuses", uri, len(statuses))
	for _, status := range statuses {
		if !p.publisher.PublishDeviceStatus(status) {
			p.logger.Printf("failed to publish status of device %s", status.SerialNumber)
		}
	}
	return nil
}
