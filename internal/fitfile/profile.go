package fitfile

import (
	"strconv"
	"time"
)

// FIT timestamps count seconds since 1989-12-31T00:00:00Z.
var fitEpoch = time.Date(1989, 12, 31, 0, 0, 0, 0, time.UTC)

func fitTimestamp(seconds uint32) time.Time {
	return fitEpoch.Add(time.Duration(seconds) * time.Second)
}

func fileTypeName(v uint8) string {
	if v == 4 {
		return "activity"
	}
	return strconv.FormatUint(uint64(v), 10)
}

var batteryStatusNames = map[uint8]string{
	1: "new",
	2: "good",
	3: "ok",
	4: "low",
	5: "critical",
	6: "charging",
	7: "unknown",
}

func batteryStatusName(v uint8) string {
	if name, ok := batteryStatusNames[v]; ok {
		return name
	}
	return strconv.FormatUint(uint64(v), 10)
}

var sourceTypeNames = map[uint8]string{
	0: "ant",
	1: "antplus",
	2: "bluetooth",
	3: "bluetooth_low_energy",
	4: "wifi",
	5: "local",
}

func sourceTypeName(v uint8) string {
	if name, ok := sourceTypeNames[v]; ok {
		return name
	}
	return strconv.FormatUint(uint64(v), 10)
}

var manufacturerNames = map[uint16]string{
	1:   "garmin",
	6:   "srm",
	7:   "quarq",
	9:   "saris",
	15:  "dynastream",
	32:  "wahoo_fitness",
	41:  "shimano",
	63:  "specialized",
	89:  "tacx",
	255: "development",
	263: "favero_electronics",
}

func manufacturerName(v uint16) string {
	if name, ok := manufacturerNames[v]; ok {
		return name
	}
	return strconv.FormatUint(uint64(v), 10)
}

// Manufacturer product enums we can resolve to a name. Codes absent here stay
// numeric and fall through to the model override table during derivation.
var garminProductNames = map[uint16]string{
	2713: "edge_1030",
	3121: "edge_530",
	3122: "edge_830",
}

// productSubfieldKey returns the profile subfield key the product resolution
// is published under for a manufacturer.
func productSubfieldKey(manufacturer string) string {
	switch manufacturer {
	case "garmin", "dynastream", "tacx":
		return "garmin_product"
	case "favero_electronics":
		return "favero_product"
	default:
		return manufacturer + "_product"
	}
}

func productName(manufacturer string, product uint16) (string, bool) {
	switch manufacturer {
	case "garmin", "dynastream", "tacx":
		name, ok := garminProductNames[product]
		return name, ok
	default:
		return "", false
	}
}

var antplusDeviceTypeNames = map[uint8]string{
	1:   "antfs",
	11:  "bike_power",
	15:  "multi_sport_speed_distance",
	16:  "control",
	17:  "fitness_equipment",
	18:  "blood_pressure",
	20:  "light_electric_vehicle",
	25:  "env_sensor",
	26:  "racquet",
	31:  "muscle_oxygen",
	34:  "shifting",
	35:  "bike_light_main",
	36:  "bike_light_shared",
	40:  "bike_radar",
	46:  "bike_aero",
	119: "weight_scale",
	120: "heart_rate",
	121: "bike_speed_cadence",
	122: "bike_cadence",
	123: "bike_speed",
	124: "stride_speed_distance",
}
