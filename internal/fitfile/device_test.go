package fitfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func deviceRecord(overrides Fields) Fields {
	record := Fields{
		"device_index":   0,
		"device_type":    "11",
		"serial_number":  "98765",
		"product":        "3121",
		"manufacturer":   "garmin",
		"source_type":    "antplus",
		"battery_status": "good",
	}
	for key, value := range overrides {
		record[key] = value
	}
	return record
}

func TestDeriveSkipsRecordsWithoutBatteryStatus(t *testing.T) {
	records := []Fields{
		{"device_index": 0, "manufacturer": "garmin"},
		deviceRecord(Fields{"device_index": 1, "serial_number": "111"}),
	}

	statuses, err := deriveDeviceStatuses(records)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, "111", statuses[0].SerialNumber)
}

func TestDeriveDeduplicatesByDeviceIndex(t *testing.T) {
	records := []Fields{
		deviceRecord(Fields{"device_index": 2, "battery_status": "good"}),
		deviceRecord(Fields{"device_index": 5, "serial_number": "555"}),
		deviceRecord(Fields{"device_index": 2, "battery_status": "low"}),
	}

	statuses, err := deriveDeviceStatuses(records)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	// Position of the first sighting, content of the last.
	require.Equal(t, 2, statuses[0].DeviceIndex)
	require.Equal(t, BatteryLow, statuses[0].BatteryStatus)
	require.Equal(t, 5, statuses[1].DeviceIndex)
}

func TestDeriveRejectsIncompleteRecords(t *testing.T) {
	for _, field := range []string{"device_index", "device_type", "serial_number", "product", "manufacturer", "source_type"} {
		record := deviceRecord(nil)
		delete(record, field)

		_, err := deriveDeviceStatuses([]Fields{record})
		var corrupted *CorruptedFileError
		require.ErrorAs(t, err, &corrupted, "expected corrupted file error without %s", field)
	}
}

func TestDeriveRejectsUnknownBatteryStatus(t *testing.T) {
	for _, value := range []any{"8", 8, "fullish"} {
		record := deviceRecord(Fields{"battery_status": value})

		_, err := deriveDeviceStatuses([]Fields{record})
		var corrupted *CorruptedFileError
		require.ErrorAs(t, err, &corrupted, "expected corrupted file error for battery_status %v", value)
		require.ErrorContains(t, err, "unknown battery_status")
	}
}

func TestDeriveAcceptsEveryKnownBatteryStatus(t *testing.T) {
	for status := range validBatteryStatuses {
		record := deviceRecord(Fields{"battery_status": string(status)})

		statuses, err := deriveDeviceStatuses([]Fields{record})
		require.NoError(t, err)
		require.Equal(t, status, statuses[0].BatteryStatus)
	}
}

func TestDeriveOptionalBatteryFields(t *testing.T) {
	statuses, err := deriveDeviceStatuses([]Fields{deviceRecord(nil)})
	require.NoError(t, err)
	require.Nil(t, statuses[0].BatteryVoltage)
	require.Nil(t, statuses[0].BatteryLevel)

	statuses, err = deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"battery_voltage": 2.90234375,
		"battery_level":   81,
	})})
	require.NoError(t, err)
	require.NotNil(t, statuses[0].BatteryVoltage)
	require.InDelta(t, 2.90234375, *statuses[0].BatteryVoltage, 1e-9)
	require.NotNil(t, statuses[0].BatteryLevel)
	require.Equal(t, 81, *statuses[0].BatteryLevel)
}

func TestProductOverridePrecedence(t *testing.T) {
	// Resolved profile subfield wins over everything.
	statuses, err := deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"product":        "3121",
		"garmin_product": "edge_530",
	})})
	require.NoError(t, err)
	require.Equal(t, "edge_530", statuses[0].Product)

	// Unresolved code falls through to the static model table.
	statuses, err = deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"product": "3592",
	})})
	require.NoError(t, err)
	require.Equal(t, "varia rtl516", statuses[0].Product)

	statuses, err = deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"manufacturer": "favero_electronics",
		"product":      "22",
	})})
	require.NoError(t, err)
	require.Equal(t, "assioma pro mx-2 spd", statuses[0].Product)

	// Unknown code with no table entry stays numeric.
	statuses, err = deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"product": "9999",
	})})
	require.NoError(t, err)
	require.Equal(t, "9999", statuses[0].Product)
}

func TestDeviceTypeOverride(t *testing.T) {
	statuses, err := deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"device_type":         "11",
		"antplus_device_type": "bike_power",
	})})
	require.NoError(t, err)
	require.Equal(t, "bike_power", statuses[0].DeviceType)

	// No extra for the record's source type leaves the raw value.
	statuses, err = deriveDeviceStatuses([]Fields{deviceRecord(Fields{
		"source_type":         "bluetooth_low_energy",
		"antplus_device_type": "bike_power",
	})})
	require.NoError(t, err)
	require.Equal(t, "11", statuses[0].DeviceType)
}
