// Package client implements the request/response commands of fire-cli.
//
// Each command loads the settings, connects to the fire-watch API, performs
// one call and prints the answer. Threshold updates and resets carry the
// current user@host as the actor.
package client
