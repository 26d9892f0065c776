package cloud

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DeviceRecord is one device as reported by the cloud listing endpoint.
//
// The wire format is loose: "num" arrives as a bool or an integer depending
// on firmware generation, "msg" is a JSON object on current devices but a
// plain string (for example "on" or "on,75") on legacy ones, and "attr1"
// may be a bool or 0/1. UnmarshalJSON normalises all of these.
type DeviceRecord struct {
	// DeviceID uniquely identifies the device within the account.
	DeviceID string

	// Topic is the messaging topic commands are published to.
	Topic string

	// TypeSuffix is the device class string ("light", "fan", "outlet", ...).
	// Sent as "id" on the wire.
	TypeSuffix string

	// TypeCode is the numeric device type required by the command endpoint.
	TypeCode int

	// Name is the user-assigned display name.
	Name string

	// Room is the user-assigned room name, may be empty.
	Room string

	// Online reports reachability as seen by the cloud.
	Online bool

	// Dimmable reports whether the device accepts brightness values.
	// Sent as "attr1" on the wire.
	Dimmable bool

	// State is the last reported device state. Legacy string payloads are
	// normalised into the same shape as object payloads.
	State map[string]any

	// RawState preserves the original "state" string field, used by some
	// device generations alongside msg.
	RawState string
}

type deviceRecordWire struct {
	DeviceID   json.RawMessage `json:"deviceID"`
	Topic      string          `json:"topic"`
	TypeSuffix string          `json:"id"`
	TypeCode   int             `json:"type"`
	Name       string          `json:"name"`
	Room       string          `json:"room"`
	Num        json.RawMessage `json:"num"`
	Attr1      json.RawMessage `json:"attr1"`
	Msg        json.RawMessage `json:"msg"`
	State      string          `json:"state"`
}

// UnmarshalJSON decodes the wire record, normalising the variant fields.
func (d *DeviceRecord) UnmarshalJSON(data []byte) error {
	var w deviceRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	d.DeviceID = flexibleString(w.DeviceID)
	d.Topic = w.Topic
	d.TypeSuffix = w.TypeSuffix
	d.TypeCode = w.TypeCode
	d.Name = w.Name
	d.Room = w.Room
	d.Online = flexibleBool(w.Num)
	d.Dimmable = flexibleBool(w.Attr1)
	d.State = parseMessage(w.Msg)
	d.RawState = w.State

	return nil
}

// flexibleString accepts a JSON string or number and returns its text form.
func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// flexibleBool accepts a JSON bool or number and returns its truthiness.
// Missing or unparseable values are false.
func flexibleBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return false
}

// parseMessage decodes the msg field. Object payloads pass through; legacy
// string payloads ("on", "off", "on,75") are converted to the object form.
// Anything unrecognised yields nil so callers treat the state as unknown.
func parseMessage(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return parseLegacyState(s)
}

// parseLegacyState converts a legacy state string into the object form used
// by current firmware. Formats observed in the field:
//
//	"on"       -> {"on": true}
//	"off"      -> {"on": false}
//	"on,75"    -> {"on": true, "bri": 75}
func parseLegacyState(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	switch parts[0] {
	case "on":
		state := map[string]any{"on": true}
		if len(parts) > 1 {
			if bri, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				state["bri"] = float64(bri)
			}
		}
		return state
	case "off":
		return map[string]any{"on": false}
	default:
		return nil
	}
}
