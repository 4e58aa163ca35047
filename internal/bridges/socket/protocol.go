package socket

import (
	"encoding/json"
	"fmt"
)

// Outbound envelope types.
const (
	// MessageDeviceChange carries a single device snapshot.
	MessageDeviceChange = "deviceChange"

	// MessageAllDevices carries every exported device's snapshot,
	// keyed by device ID.
	MessageAllDevices = "allDevices"
)

// Inbound socket commands. Anything else is ignored without error so
// newer peers can speak to older bridges.
const (
	commandSetDevice = "setDevice"
	commandGetAll    = "getAll"
)

// Envelope wraps every outbound wire message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// InboundCommand is one parsed inbound frame. VDevID and Command are
// only meaningful for setDevice.
type InboundCommand struct {
	SocketCommand string `json:"socketCommand"`
	VDevID        string `json:"vDevId"`
	Command       string `json:"command"`
	Extra         Extra  `json:"extra"`
}

// encodeEnvelope serialises an outbound message to a text frame.
func encodeEnvelope(msgType string, data any) (string, error) {
	raw, err := json.Marshal(Envelope{Type: msgType, Data: data})
	if err != nil {
		return "", fmt.Errorf("marshalling %s envelope: %w", msgType, err)
	}
	return string(raw), nil
}
