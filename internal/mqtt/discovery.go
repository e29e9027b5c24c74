package mqtt

import (
	"encoding/json"
	"fmt"
	"log"

	"example.com/stravasensor/internal/fitfile"
)

// Publisher turns device statuses into retained MQTT state messages plus Home
// Assistant device-based discovery documents, so sensors appear in Home
// Assistant without manual configuration.
type Publisher struct {
	client          *Client
	discoveryPrefix string
	statePrefix     string
	logger          *log.Logger
}

// NewPublisher builds a Publisher. discoveryPrefix is Home Assistant's
// configured discovery prefix, statePrefix roots the state topics and scopes
// the discovery node ids.
func NewPublisher(client *Client, discoveryPrefix, statePrefix string) *Publisher {
	return &Publisher{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		statePrefix:     statePrefix,
		logger:          log.New(log.Writer(), "[publisher] ", log.LstdFlags),
	}
}

// statePayload is the retained JSON state for one device.
type statePayload struct {
	BatteryStatus  string   `json:"battery_status"`
	BatteryLevel   *int     `json:"battery_level,omitempty"`
	BatteryVoltage *float64 `json:"battery_voltage,omitempty"`
	DeviceType     string   `json:"device_type"`
	SourceType     string   `json:"source_type"`
	Manufacturer   string   `json:"manufacturer"`
	Product        string   `json:"product"`
}

// discoveryDocument is a Home Assistant device-based discovery payload.
type discoveryDocument struct {
	Device     discoveryDevice            `json:"device"`
	Origin     discoveryOrigin            `json:"origin"`
	StateTopic string                     `json:"state_topic"`
	Components map[string]discoverySensor `json:"cmps"`
}

type discoveryDevice struct {
	Identifiers     []string `json:"identifiers"`
	Name            string   `json:"name"`
	Manufacturer    string   `json:"manufacturer"`
	Model           string   `json:"model"`
	SerialNumber    string   `json:"serial_number"`
	SoftwareVersion string   `json:"sw_version,omitempty"`
	HardwareVersion string   `json:"hw_version,omitempty"`
}

type discoveryOrigin struct {
	Name string `json:"name"`
}

type discoverySensor struct {
	Platform          string `json:"platform"`
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	ValueTemplate     string `json:"value_template"`
	DeviceClass       string `json:"device_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	EntityCategory    string `json:"entity_category,omitempty"`
}

// PublishDeviceStatus publishes the device's state and its discovery document.
// It reports whether both publishes were accepted.
func (p *Publisher) PublishDeviceStatus(status fitfile.DeviceStatus) bool {
	stateTopic := fmt.Sprintf("%s/%s/state", p.statePrefix, status.SerialNumber)

	state, err := json.Marshal(statePayload{
		BatteryStatus:  string(status.BatteryStatus),
		BatteryLevel:   status.BatteryLevel,
		BatteryVoltage: status.BatteryVoltage,
		DeviceType:     status.DeviceType,
		SourceType:     status.SourceType,
		Manufacturer:   status.Manufacturer,
		Product:        status.Product,
	})
	if err != nil {
		p.logger.Printf("failed to encode state for device %s: %v", status.SerialNumber, err)
		return false
	}
	if !p.client.Publish(stateTopic, string(state)) {
		return false
	}

	discovery, err := json.Marshal(p.discoveryDocument(status, stateTopic))
	if err != nil {
		p.logger.Printf("failed to encode discovery document for device %s: %v", status.SerialNumber, err)
		return false
	}
	discoveryTopic := fmt.Sprintf("%s/device/%s_%s/config", p.discoveryPrefix, p.statePrefix, status.SerialNumber)
	if !p.client.Publish(discoveryTopic, string(discovery)) {
		return false
	}

	p.logger.Printf("published status of device %s (%s %s)", status.SerialNumber, status.Manufacturer, status.Product)
	return true
}

// discoveryDocument builds the device discovery payload. Battery level and
// voltage components are only announced when the device reported them.
func (p *Publisher) discoveryDocument(status fitfile.DeviceStatus, stateTopic string) discoveryDocument {
	deviceID := fmt.Sprintf("%s_%s", p.statePrefix, status.SerialNumber)
	name := fmt.Sprintf("%s %s", status.Manufacturer, status.Product)

	components := map[string]discoverySensor{
		"battery_status": {
			Platform:       "sensor",
			Name:           "Battery status",
			UniqueID:       deviceID + "_battery_status",
			ValueTemplate:  "{{ value_json.battery_status }}",
			EntityCategory: "diagnostic",
		},
	}
	if status.BatteryLevel != nil {
		components["battery_level"] = discoverySensor{
			Platform:          "sensor",
			Name:              "Battery level",
			UniqueID:          deviceID + "_battery_level",
			ValueTemplate:     "{{ value_json.battery_level }}",
			DeviceClass:       "battery",
			UnitOfMeasurement: "%",
			EntityCategory:    "diagnostic",
		}
	}
	if status.BatteryVoltage != nil {
		components["battery_voltage"] = discoverySensor{
			Platform:          "sensor",
			Name:              "Battery voltage",
			UniqueID:          deviceID + "_battery_voltage",
			ValueTemplate:     "{{ value_json.battery_voltage }}",
			DeviceClass:       "voltage",
			UnitOfMeasurement: "V",
			EntityCategory:    "diagnostic",
		}
	}

	return discoveryDocument{
		Device: discoveryDevice{
			Identifiers:     []string{deviceID},
			Name:            name,
			Manufacturer:    status.Manufacturer,
			Model:           status.Product,
			SerialNumber:    status.SerialNumber,
			SoftwareVersion: status.SoftwareVersion,
			HardwareVersion: status.HardwareVersion,
		},
		Origin:     discoveryOrigin{Name: "strava-sensor"},
		StateTopic: stateTopic,
		Components: components,
	}
}
