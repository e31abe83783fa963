// Package relay implements the room relay core: per-connection sessions,
// the reset-on-expiry rate limiter, the room registry, and the router that
// dispatches inbound frames and fans them out to room peers.
//
// The package knows nothing about sockets. A transport hands each accepted
// connection to Router.Open, feeds every inbound frame to Router.HandleMessage
// in arrival order, and calls Router.Close when the connection goes away.
// Outbound frames leave through the Sender the transport supplied.
package relay
