// Package logger wraps zap with a global sugared logger and context helpers.
//
// Services put a named logger into their context (WithName, WithKV) and the
// package-level helpers (Infof, WarnKV, ErrorKV, ...) pull it back out, so
// every log line carries the component and request fields it belongs to.
package logger
