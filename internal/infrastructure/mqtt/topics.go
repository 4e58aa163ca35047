package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT namespace.
//
// State ingest uses the flat scheme: zway/state/{device_id}
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "zway"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "zway/system"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("ZWayVDev_zway_30-0-38")
//	// Returns: "zway/state/ZWayVDev_zway_30-0-38"
type Topics struct{}

// DeviceState returns the topic carrying metric updates for a device.
//
// Example: zway/state/ZWayVDev_zway_30-0-38
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the system status topic used for online/offline
// announcements and the LWT.
//
// Example: zway/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching metric updates for every device.
//
// Pattern: zway/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// DeviceIDFromStateTopic extracts the device ID from a state topic.
// Returns "" if the topic is not a state topic.
func (Topics) DeviceIDFromStateTopic(topic string) string {
	prefix := TopicPrefix + "/state/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	return topic[len(prefix):]
}
