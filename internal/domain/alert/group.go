package alert

import (
	"errors"
	"fmt"
)

// Group is a named partition of subscribers.
type Group string

// Known groups. They receive disjoint message sets.
const (
	GroupDashboard Group = "dashboard"
	GroupCamera    Group = "camera"
)

// ErrInvalidGroup is returned for any tag other than dashboard or camera.
var ErrInvalidGroup = errors.New("invalid subscriber group")

// Groups lists every known group.
func Groups() []Group {
	return []Group{GroupDashboard, GroupCamera}
}

// ParseGroup validates a client-supplied group tag.
func ParseGroup(s string) (Group, error) {
	switch g := Group(s); g {
	case GroupDashboard, GroupCamera:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGroup, s)
	}
}

// Valid reports whether g is a known group.
func (g Group) Valid() bool {
	_, err := ParseGroup(string(g))

	return err == nil
}
