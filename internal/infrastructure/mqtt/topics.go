package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT surface.
//
// All topics use the flat scheme: behome/{category}/{platform}/{device_id}
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "behome"

	// TopicPrefixBridge is the base for bridge-level topics (health, status).
	TopicPrefixBridge = "behome/bridge"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("light", "dev1")
//	// Returns: "behome/state/light/dev1"
type Topics struct{}

// DeviceState returns the retained state topic for a device.
//
// Example: behome/state/light/dev1
func (Topics) DeviceState(platform, deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, platform, deviceID)
}

// DeviceCommand returns the topic the bridge listens on for device commands.
//
// Example: behome/command/light/dev1
func (Topics) DeviceCommand(platform, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, platform, deviceID)
}

// DeviceAck returns the topic for command acknowledgements.
//
// Example: behome/ack/light/dev1
func (Topics) DeviceAck(platform, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, platform, deviceID)
}

// DeviceAvailability returns the retained availability topic for a device.
//
// Example: behome/availability/dev1
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// SensorState returns the state topic for one reading of a multi-value
// sensor device.
//
// Example: behome/state/sensor/dev3/temperature
func (Topics) SensorState(deviceID, reading string) string {
	return fmt.Sprintf("%s/state/sensor/%s/%s", TopicPrefix, deviceID, reading)
}

// BridgeHealth returns the bridge health topic.
//
// Example: behome/bridge/health
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health", TopicPrefixBridge)
}

// BridgeStatus returns the bridge online/offline status topic, used for
// the LWT.
//
// Example: behome/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixBridge)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceCommands returns a pattern matching every device command topic.
//
// Pattern: behome/command/+/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: behome/state/+/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllDeviceAcks returns a pattern matching every acknowledgement topic.
//
// Pattern: behome/ack/+/+
func (Topics) AllDeviceAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: behome/#
func (Topics) AllTopics() string {
	return "behome/#"
}
