// Package fitfile decodes FIT activity payloads and derives per-device battery
// state from their device_info telemetry.
package fitfile

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/basetype"
	"github.com/muktihari/fit/profile/untyped/fieldnum"
	"github.com/muktihari/fit/profile/untyped/mesgnum"
	"github.com/muktihari/fit/proto"
)

// ErrNotAFitFile reports a payload that is not FIT-framed at all.
var ErrNotAFitFile = errors.New("not a FIT file")

// CorruptedFileError reports a FIT-framed payload whose structure or checksums
// are inconsistent. It carries the decoder's error list.
type CorruptedFileError struct {
	Errs []error
}

func (e *CorruptedFileError) Error() string {
	return fmt.Sprintf("corrupted FIT file: %v", errors.Join(e.Errs...))
}

func (e *CorruptedFileError) Unwrap() []error { return e.Errs }

// Fields is one decoded message as a name→value map. Beyond the fixed schema
// the map carries provider-specific resolved keys (e.g. antplus_device_type)
// consulted by the derivation overrides.
type Fields map[string]any

// Messages groups decoded messages by category, preserving file order within
// each group.
type Messages map[string][]Fields

// Message group keys.
const (
	MessageFileID     = "file_id"
	MessageActivity   = "activity"
	MessageSession    = "session"
	MessageLap        = "lap"
	MessageRecord     = "record"
	MessageDeviceInfo = "device_info"
)

// DecodeMessages decodes raw bytes into grouped field maps. Only the fields
// consumed downstream are projected; lap and record messages count for
// presence validation and carry no fields.
func DecodeMessages(data []byte) (Messages, error) {
	if !hasFitHeader(data) {
		return nil, ErrNotAFitFile
	}

	dec := decoder.New(bytes.NewReader(data))
	fitFile, err := dec.Decode()
	if err != nil {
		return nil, &CorruptedFileError{Errs: []error{err}}
	}

	messages := make(Messages)
	for i := range fitFile.Messages {
		mesg := &fitFile.Messages[i]
		switch mesg.Num {
		case mesgnum.FileId:
			messages[MessageFileID] = append(messages[MessageFileID], fileIDFields(mesg))
		case mesgnum.Activity:
			messages[MessageActivity] = append(messages[MessageActivity], Fields{})
		case mesgnum.Session:
			messages[MessageSession] = append(messages[MessageSession], sessionFields(mesg))
		case mesgnum.Lap:
			messages[MessageLap] = append(messages[MessageLap], Fields{})
		case mesgnum.Record:
			messages[MessageRecord] = append(messages[MessageRecord], Fields{})
		case mesgnum.DeviceInfo:
			messages[MessageDeviceInfo] = append(messages[MessageDeviceInfo], deviceInfoFields(mesg))
		}
	}
	return messages, nil
}

// hasFitHeader checks the 12/14-byte FIT header for the ".FIT" data tag.
func hasFitHeader(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	size := int(data[0])
	if size != 12 && size != 14 {
		return false
	}
	return bytes.Equal(data[8:12], []byte(".FIT"))
}

func fileIDFields(mesg *proto.Message) Fields {
	fields := Fields{}
	if v, ok := fieldUint8(mesg, fieldnum.FileIdType); ok {
		fields["type"] = fileTypeName(v)
	}
	if v, ok := fieldUint32z(mesg, fieldnum.FileIdSerialNumber); ok {
		fields["serial_number"] = v
	}
	if v, ok := fieldUint16(mesg, fieldnum.FileIdManufacturer); ok {
		fields["manufacturer"] = manufacturerName(v)
	}
	return fields
}

func sessionFields(mesg *proto.Message) Fields {
	fields := Fields{}
	if v, ok := fieldUint32(mesg, fieldnum.SessionStartTime); ok {
		fields["start_time"] = fitTimestamp(v)
	}
	return fields
}

func deviceInfoFields(mesg *proto.Message) Fields {
	fields := Fields{}
	if v, ok := fieldUint8(mesg, fieldnum.DeviceInfoDeviceIndex); ok {
		fields["device_index"] = int(v)
	}
	if v, ok := fieldUint16(mesg, fieldnum.DeviceInfoManufacturer); ok {
		fields["manufacturer"] = manufacturerName(v)
	}
	if v, ok := fieldUint32z(mesg, fieldnum.DeviceInfoSerialNumber); ok {
		fields["serial_number"] = strconv.FormatUint(uint64(v), 10)
	}
	if v, ok := fieldUint16(mesg, fieldnum.DeviceInfoProduct); ok {
		fields["product"] = strconv.FormatUint(uint64(v), 10)
		if manufacturer, ok := fields["manufacturer"].(string); ok {
			if name, found := productName(manufacturer, v); found {
				// Resolved the same way the SDK resolves manufacturer product
				// subfields; unresolved codes stay numeric.
				fields[productSubfieldKey(manufacturer)] = name
			}
		}
	}
	if v, ok := fieldUint16(mesg, fieldnum.DeviceInfoSoftwareVersion); ok {
		fields["software_version"] = strconv.FormatFloat(float64(v)/100, 'f', -1, 64)
	}
	if v, ok := fieldUint8(mesg, fieldnum.DeviceInfoHardwareVersion); ok {
		fields["hardware_version"] = strconv.FormatUint(uint64(v), 10)
	}
	if v, ok := fieldUint16(mesg, fieldnum.DeviceInfoBatteryVoltage); ok {
		fields["battery_voltage"] = float64(v) / 256
	}
	if v, ok := fieldUint8(mesg, fieldnum.DeviceInfoBatteryStatus); ok {
		fields["battery_status"] = batteryStatusName(v)
	}
	if v, ok := fieldUint8(mesg, fieldnum.DeviceInfoBatteryLevel); ok {
		fields["battery_level"] = int(v)
	}

	sourceType, hasSource := fieldUint8(mesg, fieldnum.DeviceInfoSourceType)
	if hasSource {
		fields["source_type"] = sourceTypeName(sourceType)
	}
	if v, ok := fieldUint8(mesg, fieldnum.DeviceInfoDeviceType); ok {
		fields["device_type"] = strconv.FormatUint(uint64(v), 10)
		if hasSource && sourceTypeName(sourceType) == "antplus" {
			if name, found := antplusDeviceTypeNames[v]; found {
				fields["antplus_device_type"] = name
			}
		}
	}
	return fields
}

func fieldUint8(mesg *proto.Message, num byte) (uint8, bool) {
	v := mesg.FieldValueByNum(num).Uint8()
	if v == basetype.Uint8Invalid {
		return 0, false
	}
	return v, true
}

func fieldUint16(mesg *proto.Message, num byte) (uint16, bool) {
	v := mesg.FieldValueByNum(num).Uint16()
	if v == basetype.Uint16Invalid {
		return 0, false
	}
	return v, true
}

func fieldUint32(mesg *proto.Message, num byte) (uint32, bool) {
	v := mesg.FieldValueByNum(num).Uint32()
	if v == basetype.Uint32Invalid {
		return 0, false
	}
	return v, true
}

func fieldUint32z(mesg *proto.Message, num byte) (uint32, bool) {
	v := mesg.FieldValueByNum(num).Uint32()
	if v == basetype.Uint32Invalid || v == 0 {
		return 0, false
	}
	return v, true
}
