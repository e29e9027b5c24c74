package fitfile

import (
	"fmt"
	"time"
)

// InvalidActivityError reports a well-formed FIT file that does not satisfy the
// mandatory activity message set.
type InvalidActivityError struct {
	Reason string
}

func (e *InvalidActivityError) Error() string {
	return "invalid activity file: " + e.Reason
}

// requiredMessages are the groups an activity file must carry at least one of.
var requiredMessages = []string{
	MessageFileID,
	MessageActivity,
	MessageSession,
	MessageLap,
	MessageRecord,
}

// Activity is the validated result of decoding one activity payload. It is
// built once per decode and never mutated afterwards.
type Activity struct {
	ID        uint32
	StartTime time.Time

	devices []DeviceStatus
}

// Parse decodes, validates and reduces a raw activity payload. It fails closed:
// no Activity is returned unless the mandatory message set is present and every
// battery-carrying device record validates.
func Parse(data []byte) (*Activity, error) {
	messages, err := DecodeMessages(data)
	if err != nil {
		return nil, err
	}
	return newActivity(messages)
}

func newActivity(messages Messages) (*Activity, error) {
	if err := validateActivityMessages(messages); err != nil {
		return nil, err
	}

	devices, err := deriveDeviceStatuses(messages[MessageDeviceInfo])
	if err != nil {
		return nil, err
	}

	activity := &Activity{devices: devices}
	fileID := messages[MessageFileID][0]
	if serial, ok := fileID["serial_number"].(uint32); ok {
		activity.ID = serial
	}
	if start, ok := messages[MessageSession][0]["start_time"].(time.Time); ok {
		activity.StartTime = start
	}
	return activity, nil
}

// validateActivityMessages enforces the mandatory activity message set.
func validateActivityMessages(messages Messages) error {
	for _, name := range requiredMessages {
		if len(messages[name]) == 0 {
			return &InvalidActivityError{Reason: fmt.Sprintf("missing %s message", name)}
		}
	}
	if len(messages[MessageFileID]) != 1 {
		return &InvalidActivityError{Reason: "there must be one file_id message"}
	}
	if messages[MessageFileID][0]["type"] != "activity" {
		return &InvalidActivityError{Reason: "type property of file_id message must be set to activity"}
	}
	return nil
}

// DeviceStatuses returns the derived device records in first-insertion order
// of their device index.
func (a *Activity) DeviceStatuses() []DeviceStatus {
	out := make([]DeviceStatus, len(a.devices))
	copy(out, a.devices)
	return out
}
