// Package runtime hosts the live entities of the gateway.
//
// The Manager implements the entity lifecycle: given a committed
// configuration record it builds the platform-specific live object
// (switch, light), verifies any referenced parent device, wires the
// object to the KNX bus and keeps it running until unregistered. Live
// objects subscribe to their state group addresses, publish command
// telegrams, honour invert and respond_to_read, and apply the
// sync_state read-on-start policy.
package runtime
