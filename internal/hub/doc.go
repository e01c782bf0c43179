// Package hub implements the subscriber registry that fans alert messages out
// to live connections.
//
// Subscribers join one of two disjoint groups. Publish delivers a message to
// every member of a group concurrently, gives each delivery a bounded budget,
// and removes any member whose delivery fails.
package hub
