// Package rest exposes the fire-watch HTTP API.
//
// Routes are served by chi. Handlers decode the request, call the
// orchestrator and map its sentinel errors to status codes; the websocket
// endpoint hands the connection over to package ws.
package rest
