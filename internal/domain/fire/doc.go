// Package fire contains the core domain types of the fire watch.
//
// It defines sensor readings, thresholds, vision detections, the ordered
// system Status, the pure risk evaluator and status resolver, and the Latch
// that records a confirmed fire for the lifetime of the process.
package fire
