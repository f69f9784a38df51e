package wire

import (
	"fmt"
	"net"
)

// Address is an IP address and port. Addresses arriving in a payload from a
// peer are never trusted for that peer's own location during daemon-to-daemon
// traffic: callers must combine a SenderNode's port with the IP inferred from
// the connection, never the IP a payload claims for itself.
type Address struct {
	IP   net.IP `json:"ip"`
	Port uint16 `json:"port"`
}

func (a Address) String() string {
	return net.JoinHostPort(a.IP.String(), fmt.Sprintf("%d", a.Port))
}

// IsZero reports whether a carries no address information.
func (a Address) IsZero() bool {
	return len(a.IP) == 0 && a.Port == 0
}
