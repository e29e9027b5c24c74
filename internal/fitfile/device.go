package fitfile

import (
	"fmt"
	"strconv"
)

// BatteryStatus is the normalized battery state reported by a sensor.
type BatteryStatus string

const (
	BatteryNew      BatteryStatus = "new"
	BatteryGood     BatteryStatus = "good"
	BatteryOK       BatteryStatus = "ok"
	BatteryLow      BatteryStatus = "low"
	BatteryCritical BatteryStatus = "critical"
	BatteryCharging BatteryStatus = "charging"
	BatteryUnknown  BatteryStatus = "unknown"
)

// validBatteryStatuses is the closed set of states a record may carry. Codes
// outside the profile enumeration fail the decode rather than leak numeric
// strings into published state.
var validBatteryStatuses = map[BatteryStatus]struct{}{
	BatteryNew:      {},
	BatteryGood:     {},
	BatteryOK:       {},
	BatteryLow:      {},
	BatteryCritical: {},
	BatteryCharging: {},
	BatteryUnknown:  {},
}

// modelOverride maps manufacturer→legacy product code→marketed name, for
// devices whose product code never resolves through the FIT profile.
var modelOverride = map[string]map[string]string{
	"favero_electronics": {
		"22": "assioma pro mx-2 spd",
	},
	"garmin": {
		"3592": "varia rtl516",
	},
}

// DeviceStatus is one paired peripheral's identity and battery state. Derived
// from device_info telemetry, never hand-constructed.
type DeviceStatus struct {
	DeviceIndex     int
	DeviceType      string
	SerialNumber    string
	Product         string
	Manufacturer    string
	SourceType      string
	BatteryVoltage  *float64
	BatteryStatus   BatteryStatus
	BatteryLevel    *int
	SoftwareVersion string
	HardwareVersion string
}

// deriveDeviceStatuses folds raw device_info records into normalized,
// deduplicated device records. Records without a battery status carry no
// signal and are dropped. Later records for an already-seen device index
// overwrite the value but keep the position of the first sighting.
func deriveDeviceStatuses(records []Fields) ([]DeviceStatus, error) {
	var order []int
	byIndex := make(map[int]DeviceStatus)

	for _, record := range records {
		if stringValue(record["battery_status"]) == "" {
			continue
		}

		status, err := validateDeviceStatus(record)
		if err != nil {
			return nil, err
		}

		if _, seen := byIndex[status.DeviceIndex]; !seen {
			order = append(order, status.DeviceIndex)
		}
		byIndex[status.DeviceIndex] = status
	}

	out := make([]DeviceStatus, 0, len(order))
	for _, index := range order {
		out = append(out, byIndex[index])
	}
	return out, nil
}

// fixedDeviceFields are the schema keys of DeviceStatus; everything else on a
// record is an open-ended extra consulted only by the override lookups.
var fixedDeviceFields = map[string]struct{}{
	"device_index":     {},
	"device_type":      {},
	"serial_number":    {},
	"product":          {},
	"manufacturer":     {},
	"source_type":      {},
	"battery_voltage":  {},
	"battery_status":   {},
	"battery_level":    {},
	"software_version": {},
	"hardware_version": {},
}

func validateDeviceStatus(record Fields) (DeviceStatus, error) {
	status := DeviceStatus{
		DeviceType:      stringValue(record["device_type"]),
		SerialNumber:    stringValue(record["serial_number"]),
		Product:         stringValue(record["product"]),
		Manufacturer:    stringValue(record["manufacturer"]),
		SourceType:      stringValue(record["source_type"]),
		BatteryStatus:   BatteryStatus(stringValue(record["battery_status"])),
		SoftwareVersion: stringValue(record["software_version"]),
		HardwareVersion: stringValue(record["hardware_version"]),
	}

	index, ok := intValue(record["device_index"])
	if !ok {
		return DeviceStatus{}, &CorruptedFileError{Errs: []error{fmt.Errorf("device_info record: missing device_index")}}
	}
	status.DeviceIndex = index

	for _, required := range []struct{ name, value string }{
		{"device_type", status.DeviceType},
		{"serial_number", status.SerialNumber},
		{"product", status.Product},
		{"manufacturer", status.Manufacturer},
		{"source_type", status.SourceType},
	} {
		if required.value == "" {
			return DeviceStatus{}, &CorruptedFileError{Errs: []error{fmt.Errorf("device_info record %d: missing %s", index, required.name)}}
		}
	}

	if _, ok := validBatteryStatuses[status.BatteryStatus]; !ok {
		return DeviceStatus{}, &CorruptedFileError{Errs: []error{fmt.Errorf("device_info record %d: unknown battery_status %q", index, status.BatteryStatus)}}
	}

	if v, ok := floatValue(record["battery_voltage"]); ok {
		status.BatteryVoltage = &v
	}
	if v, ok := intValue(record["battery_level"]); ok {
		status.BatteryLevel = &v
	}

	extras := make(Fields)
	for key, value := range record {
		if _, fixed := fixedDeviceFields[key]; !fixed {
			extras[key] = value
		}
	}
	status.applyOverrides(extras)
	return status, nil
}

// applyOverrides resolves the product and device_type override precedence:
// per-activity extra field first, then (for product) the static model table,
// then the decoded value.
func (s *DeviceStatus) applyOverrides(extras Fields) {
	if v := stringValue(extras[s.Manufacturer+"_product"]); v != "" {
		s.Product = v
	} else if mapped, ok := modelOverride[s.Manufacturer][s.Product]; ok {
		s.Product = mapped
	}

	if v := stringValue(extras[s.SourceType+"_device_type"]); v != "" {
		s.DeviceType = v
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case uint32:
		return strconv.FormatUint(uint64(value), 10)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func intValue(v any) (int, bool) {
	switch value := v.(type) {
	case int:
		return value, true
	case uint32:
		return int(value), true
	case float64:
		return int(value), true
	default:
		return 0, false
	}
}

func floatValue(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	default:
		return 0, false
	}
}
