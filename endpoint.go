// SPDX-License-Identifier: GPL-3.0-or-later

package mindbridge

import (
	"net"
	"strconv"
)

// Endpoint is a host and port pair.
//
// Unlike [netip.AddrPort], the host may be a name (e.g., "localhost"),
// which the [Dialer] resolves.
type Endpoint struct {
	Host string
	Port uint16
}

// String returns the endpoint in host:port form, bracketing IPv6 literals.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// NewEndpointFunc returns a [Func] that always returns the given [Endpoint].
func NewEndpointFunc(endpoint Endpoint) Func[Unit, Endpoint] {
	return ConstFunc(endpoint)
}
