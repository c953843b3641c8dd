package mqtt

import "fmt"

// Topic prefixes for the showctl MQTT hierarchy.
//
// Device topics use the flat scheme: showctl/{category}/{kind}/{device}
// where kind is "display" or "lighting". Core topics carry engine events.
const (
	// TopicPrefixDevice is the base for all device topics.
	TopicPrefixDevice = "showctl"

	// TopicPrefixCore is the base for all core topics.
	TopicPrefixCore = "showctl/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "showctl/system"
)

// Device kinds used as the second topic level.
const (
	KindDisplay  = "display"
	KindLighting = "lighting"
)

// Topics provides builders for showctl MQTT topics.
// Using these helpers keeps topic naming consistent between the core and
// the device bridges (media player, smart bulb).
//
//	topics := mqtt.Topics{}
//	cmd := topics.DeviceCommand(mqtt.KindDisplay, "projector")
//	// Returns: "showctl/command/display/projector"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceCommand returns the topic for commands sent to a device bridge.
//
// Example: showctl/command/lighting/stage-bulb
func (Topics) DeviceCommand(kind, device string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixDevice, kind, device)
}

// DeviceState returns the topic a device bridge reports its state on.
//
// Example: showctl/state/display/projector
func (Topics) DeviceState(kind, device string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixDevice, kind, device)
}

// AllDeviceStates returns a pattern matching every device state report.
//
// Pattern: showctl/state/+/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixDevice)
}

// =============================================================================
// Core Topics
// =============================================================================

// CoreSceneState returns the topic scene state transitions are mirrored to.
//
// Example: showctl/core/scene/3/state
func (Topics) CoreSceneState(sceneID int) string {
	return fmt.Sprintf("%s/scene/%d/state", TopicPrefixCore, sceneID)
}

// CoreActionSettled returns the topic action settlements are mirrored to.
//
// Example: showctl/core/scene/3/settled
func (Topics) CoreActionSettled(sceneID int) string {
	return fmt.Sprintf("%s/scene/%d/settled", TopicPrefixCore, sceneID)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: showctl/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllTopics returns a pattern matching all showctl topics.
//
// Pattern: showctl/#
func (Topics) AllTopics() string {
	return TopicPrefixDevice + "/#"
}
