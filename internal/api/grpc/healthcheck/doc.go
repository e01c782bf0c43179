// Package healthcheck serves the standard gRPC health protocol for fire-watch.
//
// A Monitor probes the store periodically and publishes the result as the
// serving status of ServiceName, so orchestrators and load balancers can use
// grpc_health_probe against the health address.
package healthcheck
