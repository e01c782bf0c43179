// Package alert defines the real-time messages pushed to subscribers and the
// subscriber groups they are pushed to.
//
// Message is a closed set: only the types in this package implement it, and
// each one serializes with a "type" discriminator and a "timestamp".
package alert
