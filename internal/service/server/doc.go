// Package server wires the fire-watch components into one process.
//
// Run opens the store, builds the orchestrator with its notifier and vision
// client, serves the HTTP and websocket API, and optionally starts the gRPC
// health endpoint and the Kafka reading consumer. Everything stops when the
// context is canceled.
package server
