// Package mqtt wraps paho.mqtt.golang with the gateway's connection
// management, topic scheme, and subscription tracking.
//
// The gateway uses MQTT as its sole link to the KNX bus: an external
// bridge decodes bus traffic into JSON telegrams and accepts group
// write/read requests. This package provides:
//
//   - Connection lifecycle with auto-reconnect and LWT status
//   - Publish/Subscribe with validation and panic recovery
//   - Automatic re-subscription after reconnect
//   - Topic builders for the knxgw/{category}/{bridge} hierarchy
//
// All client methods are safe for concurrent use.
package mqtt
