// Package api provides the HTTP REST API and WebSocket server for the KNX
// gateway.
//
// It exposes the entity configuration store, the virtual device registry and
// the group monitor to clients, and pushes entity state changes and live bus
// telegrams to WebSocket subscribers.
//
// The server follows the same lifecycle pattern as the other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
