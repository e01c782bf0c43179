// Package config loads, validates and saves the YAML settings of fire-watch.
//
// Validate fills defaults for every omitted field, so a partial file (or no
// file at all) yields a runnable configuration.
package config
