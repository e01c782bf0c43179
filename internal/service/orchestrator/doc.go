// Package orchestrator turns sensor readings and vision predictions into
// persisted records, real-time alerts and notification emails.
//
// The fire latch, subscriber registry and store are built by the server and
// injected, so tests can drive the orchestrator with in-memory fakes.
package orchestrator
