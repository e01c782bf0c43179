// Package ws serves the real-time alert channel over websockets.
//
// Every connection is a hub.Sink: the registry enqueues encoded messages and
// a write pump drains them onto the socket. The read pump only handles
// control frames and detects disconnects.
package ws
