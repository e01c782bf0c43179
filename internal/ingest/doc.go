// Package ingest feeds sensor readings from a Kafka or Redpanda topic into
// the orchestrator, as an alternative to POST /sensors for sensor fleets
// that already publish to a broker.
package ingest
