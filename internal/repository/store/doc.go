// Package store persists sensor readings, detection events, threshold
// versions and the status log.
//
// All collections are append-only and "latest" always means the newest
// record. SQLRepository keeps them in SQLite through gorm; MemoryRepository
// keeps them in process memory for tests and throwaway runs.
package store
