// Package common holds helpers shared by the fire-cli commands.
//
// It provides a small HTTP client for the fire-watch API with per-call
// timeouts and a helper that detects the current user@host for the audit trail.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
