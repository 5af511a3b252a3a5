package daemon

import (
	"fmt"
	"os"
	"strings"
)

// InstanceID identifies one daemon process for the lifetime of that process.
// Built once at startup from host + pid and threaded through every status
// write, so concurrent daemons on different hosts never collide.
type InstanceID string

func NewInstanceID() InstanceID {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "unknown"
	}
	return InstanceID(fmt.Sprintf("%s-%d", host, os.Getpid()))
}

func (id InstanceID) String() string { return string(id) }
