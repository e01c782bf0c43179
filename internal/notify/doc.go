// Package notify sends alert emails.
//
// Send never panics or returns a bare error: the outcome is a Result that the
// caller reports as advisory information next to the alert it accompanies.
package notify
