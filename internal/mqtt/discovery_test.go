package mqtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"example.com/stravasensor/internal/fitfile"
)

func fullDeviceStatus() fitfile.DeviceStatus {
	voltage := 2.90234375
	level := 81
	return fitfile.DeviceStatus{
		DeviceIndex:     2,
		DeviceType:      "bike_radar",
		SerialNumber:    "98765",
		Product:         "varia rtl516",
		Manufacturer:    "garmin",
		SourceType:      "antplus",
		BatteryVoltage:  &voltage,
		BatteryStatus:   fitfile.BatteryGood,
		BatteryLevel:    &level,
		SoftwareVersion: "9.5",
		HardwareVersion: "1",
	}
}

func newTestPublisher() (*Publisher, *stubTransport) {
	transport := &stubTransport{connected: true}
	client := newClient(transport, 1, time.Millisecond)
	return NewPublisher(client, "homeassistant", "strava_sensor"), transport
}

func TestPublishDeviceStatusTopicsAndState(t *testing.T) {
	publisher, transport := newTestPublisher()

	require.True(t, publisher.PublishDeviceStatus(fullDeviceStatus()))
	require.Len(t, transport.calls, 2)

	state := transport.calls[0]
	require.Equal(t, "strava_sensor/98765/state", state.topic)
	require.True(t, state.retained)
	require.Equal(t, "good", gjson.Get(state.payload, "battery_status").String())
	require.Equal(t, int64(81), gjson.Get(state.payload, "battery_level").Int())
	require.InDelta(t, 2.90234375, gjson.Get(state.payload, "battery_voltage").Float(), 1e-9)
	require.Equal(t, "bike_radar", gjson.Get(state.payload, "device_type").String())

	discovery := transport.calls[1]
	require.Equal(t, "homeassistant/device/strava_sensor_98765/config", discovery.topic)
	require.True(t, discovery.retained)
}

func TestDiscoveryDocumentAnnouncesComponents(t *testing.T) {
	publisher, transport := newTestPublisher()

	require.True(t, publisher.PublishDeviceStatus(fullDeviceStatus()))
	doc := transport.calls[1].payload

	require.Equal(t, "garmin varia rtl516", gjson.Get(doc, "device.name").String())
	require.Equal(t, "garmin", gjson.Get(doc, "device.manufacturer").String())
	require.Equal(t, "varia rtl516", gjson.Get(doc, "device.model").String())
	require.Equal(t, "98765", gjson.Get(doc, "device.serial_number").String())
	require.Equal(t, "9.5", gjson.Get(doc, "device.sw_version").String())
	require.Equal(t, "strava_sensor/98765/state", gjson.Get(doc, "state_topic").String())

	require.True(t, gjson.Get(doc, "cmps.battery_status").Exists())
	require.True(t, gjson.Get(doc, "cmps.battery_level").Exists())
	require.True(t, gjson.Get(doc, "cmps.battery_voltage").Exists())
	require.Equal(t, "strava_sensor_98765_battery_status", gjson.Get(doc, "cmps.battery_status.unique_id").String())
	require.Equal(t, "battery", gjson.Get(doc, "cmps.battery_level.device_class").String())
	require.Equal(t, "V", gjson.Get(doc, "cmps.battery_voltage.unit_of_measurement").String())
}

func TestDiscoveryDocumentOmitsAbsentBatteryComponents(t *testing.T) {
	publisher, transport := newTestPublisher()

	status := fullDeviceStatus()
	status.BatteryVoltage = nil
	status.BatteryLevel = nil
	require.True(t, publisher.PublishDeviceStatus(status))

	state := transport.calls[0].payload
	require.False(t, gjson.Get(state, "battery_level").Exists())
	require.False(t, gjson.Get(state, "battery_voltage").Exists())

	doc := transport.calls[1].payload
	require.True(t, gjson.Get(doc, "cmps.battery_status").Exists())
	require.False(t, gjson.Get(doc, "cmps.battery_level").Exists())
	require.False(t, gjson.Get(doc, "cmps.battery_voltage").Exists())
}

func TestPublishDeviceStatusFailsWhenBrokerUnavailable(t *testing.T) {
	transport := &stubTransport{connected: false}
	client := newClient(transport, 1, time.Millisecond)
	publisher := NewPublisher(client, "homeassistant", "strava_sensor")

	require.False(t, publisher.PublishDeviceStatus(fullDeviceStatus()))
}
