// Package server implements the HTTP and WebSocket side of the room relay.
//
// The implementation is organized into specialized files for configuration,
// logging, origin checks, hub management, clients, routing, and HTTP handlers.
// Room state and message routing live in the relay package; this package
// moves frames between sockets and that router.
package server
