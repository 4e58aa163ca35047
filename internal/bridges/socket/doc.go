// Package socket bridges the virtual device registry to a single
// outbound WebSocket peer.
//
// Outbound, every level-metric modification is encoded as a device
// snapshot and sent inside a {type, data} envelope. Inbound, the peer
// issues setDevice commands that are translated per device type into
// registry actions, or getAll requests answered with a full keyed
// snapshot of every exported device.
//
// The bridge owns exactly one connection at a time. Reconnection is
// opportunistic: any send attempt or metric write while disconnected
// triggers a fresh dial, guarded against overlapping attempts. There
// is no retry timer.
//
// Architecture:
//
//	registry events -> Bridge -> Conn -> Transport (gorilla/websocket)
//	peer frames     -> Transport -> Conn -> Bridge -> registry commands
package socket
