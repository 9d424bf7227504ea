package mqtt

import "fmt"

// TopicPrefix is the root of the gateway's MQTT topic hierarchy.
//
// Bus traffic follows the flat scheme knxgw/{category}/{bridge}/{suffix},
// where {bridge} is the bus bridge instance identifier from config
// (knx.bridge_id, usually "knx").
const TopicPrefix = "knxgw"

// Topics provides builders for the gateway's MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	t := topics.Telegram("knx")
//	// Returns: "knxgw/telegram/knx"
type Topics struct{}

// Telegram returns the topic on which the bus bridge publishes decoded
// group telegrams.
//
// Example: knxgw/telegram/knx
func (Topics) Telegram(bridge string) string {
	return fmt.Sprintf("%s/telegram/%s", TopicPrefix, bridge)
}

// GroupWrite returns the topic for group write requests to the bridge.
// The target group address travels in the payload, not the topic, since
// KNX addresses contain slashes.
//
// Example: knxgw/command/knx/group_write
func (Topics) GroupWrite(bridge string) string {
	return fmt.Sprintf("%s/command/%s/group_write", TopicPrefix, bridge)
}

// GroupRead returns the topic for group read requests to the bridge.
//
// Example: knxgw/command/knx/group_read
func (Topics) GroupRead(bridge string) string {
	return fmt.Sprintf("%s/command/%s/group_read", TopicPrefix, bridge)
}

// GroupResponse returns the topic for read responses the gateway sends
// on behalf of entities that answer bus reads.
//
// Example: knxgw/command/knx/group_response
func (Topics) GroupResponse(bridge string) string {
	return fmt.Sprintf("%s/command/%s/group_response", TopicPrefix, bridge)
}

// BridgeStatus returns the topic for bus bridge health status.
//
// Example: knxgw/bridge/knx/status
func (Topics) BridgeStatus(bridge string) string {
	return fmt.Sprintf("%s/bridge/%s/status", TopicPrefix, bridge)
}

// SystemStatus returns the gateway's own status topic, used for the
// online/offline announcements and the LWT message.
//
// Example: knxgw/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllTelegrams returns a pattern matching telegrams from every bridge.
//
// Pattern: knxgw/telegram/+
func (Topics) AllTelegrams() string {
	return fmt.Sprintf("%s/telegram/+", TopicPrefix)
}

// AllBridgeStatuses returns a pattern matching every bridge status topic.
//
// Pattern: knxgw/bridge/+/status
func (Topics) AllBridgeStatuses() string {
	return fmt.Sprintf("%s/bridge/+/status", TopicPrefix)
}
