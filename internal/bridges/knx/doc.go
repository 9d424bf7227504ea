// Package knx provides the gateway's view of the KNX bus.
//
// The gateway never speaks the KNX wire protocol. An external bus
// bridge decodes group telegrams into JSON and accepts group
// write/read requests, both over MQTT. This package provides:
//
//   - Group address parsing and validation (3-level format)
//   - The Telegram JSON model exchanged with the bridge
//   - Bus, a client that fans incoming telegrams out to listeners and
//     keeps a bounded ring of recent traffic for the group monitor
//
// Bus methods are safe for concurrent use.
package knx
