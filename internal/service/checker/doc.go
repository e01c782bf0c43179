// Package checker implements "fire-cli watch": it subscribes to a websocket
// group of the fire-watch API and prints every alert it receives, reconnecting
// until the context is canceled.
package checker
